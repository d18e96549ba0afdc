package rooms

import (
	"context"
	"errors"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/input"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

type Pusher interface {
	PushToUser(userId, event string, payload any) int
}

// DMListUpdated tells a member to refresh a direct room in their inbox.
// LastMessage is set when a new message caused the update.
type DMListUpdated struct {
	RoomId      string         `json:"room_id"`
	LastMessage *types.Message `json:"last_message,omitempty"`
}

type ReadReceipt struct {
	RoomId string    `json:"room_id"`
	UserId string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type UserTyping struct {
	RoomId   string `json:"room_id"`
	UserId   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type messageParams struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// Service keeps exactly one direct room per pair of users and relays the
// per-room signals its members exchange.
type Service struct {
	repo    database.Repository
	pusher  Pusher
	log     *logrus.Logger
	timeout time.Duration
}

func NewService(repo database.Repository, pusher Pusher, log *logrus.Logger, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		pusher:  pusher,
		log:     log,
		timeout: timeout,
	}
}

// GetOrCreateDirectRoom returns the direct room shared by a and b, creating
// it on first use. Concurrent callers always observe the same room.
func (s *Service) GetOrCreateDirectRoom(ctx context.Context, a, b string) (types.Room, error) {
	if a == "" || b == "" {
		return types.Room{}, apperr.New(apperr.Invalid, "both participants are required")
	}
	if a == b {
		return types.Room{}, apperr.New(apperr.Invalid, "cannot open a direct room with yourself")
	}

	id, err := shortid.Generate()
	if err != nil {
		return types.Room{}, apperr.Wrap(apperr.Failed, "generate room id", err)
	}

	lo, hi := types.DirectPair(a, b)
	candidate := types.Room{
		Id:        id,
		Name:      "DM:" + lo + "-" + hi,
		IsDirect:  true,
		Members:   []string{lo, hi},
		PairKey:   types.DirectPairKey(a, b),
		CreatedAt: types.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	room, created, err := s.repo.GetOrCreateDirectRoom(ctx, candidate)
	if err != nil {
		return types.Room{}, apperr.Wrap(apperr.Failed, "get or create direct room", err)
	}

	if created {
		s.log.WithFields(logrus.Fields{"room_id": room.Id, "pair": room.PairKey}).Info("direct room created")
		for _, member := range room.Members {
			s.pusher.PushToUser(member, server.EventDMListUpdated, DMListUpdated{RoomId: room.Id})
		}
	}
	return room, nil
}

// SendMessage stores a message from authorId and then delivers it to every
// member of the room. Direct rooms also refresh both inboxes.
func (s *Service) SendMessage(ctx context.Context, roomId, authorId, content string) (types.Message, error) {
	params := messageParams{Content: input.Clean(content)}
	if err := input.Validate(params); err != nil {
		return types.Message{}, err
	}

	room, err := s.memberRoom(ctx, roomId, authorId)
	if err != nil {
		return types.Message{}, err
	}

	msg := types.Message{
		Id:        uuid.NewString(),
		RoomId:    room.Id,
		AuthorId:  authorId,
		Content:   params.Content,
		ReadBy:    []string{authorId},
		CreatedAt: types.Now(),
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.CreateMessage(storeCtx, msg); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Message{}, apperr.New(apperr.NotFound, "room not found")
		}
		return types.Message{}, apperr.Wrap(apperr.Failed, "save message", err)
	}

	for _, member := range room.Members {
		s.pusher.PushToUser(member, server.EventRoomMessage, msg)
		if room.IsDirect {
			s.pusher.PushToUser(member, server.EventDMListUpdated, DMListUpdated{RoomId: room.Id, LastMessage: &msg})
		}
	}
	return msg, nil
}

// ListMessages returns the room history visible to userId, oldest first.
func (s *Service) ListMessages(ctx context.Context, roomId, userId string, before time.Time, limit int) ([]types.Message, error) {
	room, err := s.memberRoom(ctx, roomId, userId)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.repo.ListMessages(ctx, room.Id, before, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Failed, "list messages", err)
	}
	return list, nil
}

// MarkRead records that readerId has seen every message in the room, then
// tells each member. It returns how many messages changed.
func (s *Service) MarkRead(ctx context.Context, roomId, readerId string) (int, error) {
	room, err := s.memberRoom(ctx, roomId, readerId)
	if err != nil {
		return 0, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	updated, err := s.repo.MarkMessagesRead(storeCtx, room.Id, readerId)
	if err != nil {
		return 0, apperr.Wrap(apperr.Failed, "mark messages read", err)
	}

	receipt := ReadReceipt{RoomId: room.Id, UserId: readerId, ReadAt: types.Now()}
	for _, member := range room.Members {
		s.pusher.PushToUser(member, server.EventDMReadReceipt, receipt)
		s.pusher.PushToUser(member, server.EventDMListUpdated, DMListUpdated{RoomId: room.Id})
	}
	return updated, nil
}

// HandleTyping relays a typing indicator to the other members of the room.
func (s *Service) HandleTyping(ctx context.Context, userId, roomId string, isTyping bool) error {
	room, err := s.memberRoom(ctx, roomId, userId)
	if err != nil {
		return err
	}

	for _, member := range room.Members {
		if member == userId {
			continue
		}
		s.pusher.PushToUser(member, server.EventUserTyping, UserTyping{
			RoomId:   room.Id,
			UserId:   userId,
			IsTyping: isTyping,
		})
	}
	return nil
}

func (s *Service) HandlePublish(ctx context.Context, userId, roomId, content string) (any, error) {
	msg, err := s.SendMessage(ctx, roomId, userId, content)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) HandleRead(ctx context.Context, userId, roomId string) error {
	_, err := s.MarkRead(ctx, roomId, userId)
	return err
}

func (s *Service) memberRoom(ctx context.Context, roomId, userId string) (types.Room, error) {
	if roomId == "" {
		return types.Room{}, apperr.New(apperr.Invalid, "room_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	room, err := s.repo.GetRoom(ctx, roomId)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return types.Room{}, apperr.New(apperr.NotFound, "room not found")
	case err != nil:
		return types.Room{}, apperr.Wrap(apperr.Failed, "load room", err)
	}

	if !room.HasMember(userId) {
		return types.Room{}, apperr.New(apperr.Forbidden, "not a member of this room")
	}
	return room, nil
}
