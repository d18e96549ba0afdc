package pods

import (
	"context"
	"errors"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/input"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

const maxBoost = 30 * 24 * time.Hour

type Notifier interface {
	Push(ctx context.Context, userId, typ, message string, meta types.NotificationMeta) (types.Notification, error)
}

type Pusher interface {
	PushToUser(userId, event string, payload any) int
	PushToUsers(userIds []string, event string, payload any) int
}

type DirectRooms interface {
	GetOrCreateDirectRoom(ctx context.Context, a, b string) (types.Room, error)
}

type Limits interface {
	PodApply(ctx context.Context, userId, podId string) error
	PodInvite(ctx context.Context, ownerId, podId string) error
}

type RoleParams struct {
	Id             string   `json:"id"`
	Title          string   `json:"title" validate:"required,max=80"`
	Description    string   `json:"description" validate:"max=500"`
	RequiredSkills []string `json:"required_skills" validate:"max=20"`
	SlotCount      int      `json:"slot_count" validate:"gt=0,lte=100"`
}

type CreateParams struct {
	Name        string           `json:"name" validate:"required,max=120"`
	Description string           `json:"description" validate:"max=2000"`
	Tags        []string         `json:"tags" validate:"max=20"`
	Visibility  types.Visibility `json:"visibility" validate:"omitempty,oneof=public unlisted private"`
	Roles       []RoleParams     `json:"roles" validate:"max=20,dive"`
}

// Approval is the outcome of admitting someone into a pod.
type Approval struct {
	Pod    types.Pod    `json:"pod"`
	Member types.Member `json:"member"`
	Room   *types.Room  `json:"room,omitempty"`
}

// Service runs the pod membership state machine. Every mutation is a single
// conditional store write; notifications and events follow once it commits.
type Service struct {
	repo     database.Repository
	notifier Notifier
	pusher   Pusher
	rooms    DirectRooms
	limits   Limits
	log      *logrus.Logger
	timeout  time.Duration
}

func NewService(repo database.Repository, notifier Notifier, pusher Pusher, rooms DirectRooms, limits Limits, log *logrus.Logger, timeout time.Duration) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		pusher:   pusher,
		rooms:    rooms,
		limits:   limits,
		log:      log,
		timeout:  timeout,
	}
}

func (s *Service) Create(ctx context.Context, ownerId string, p CreateParams) (types.Pod, error) {
	pod, err := newPod(ownerId, p)
	if err != nil {
		return types.Pod{}, err
	}

	if err := s.store(ctx, pod); err != nil {
		return types.Pod{}, err
	}
	return pod, nil
}

// CreateCollabPod starts a pod owned by ownerId with partnerId already in it.
func (s *Service) CreateCollabPod(ctx context.Context, ownerId, partnerId, name string) (types.Pod, error) {
	if name == "" {
		name = "Collab pod"
	}

	pod, err := newPod(ownerId, CreateParams{
		Name:        name,
		Description: "Auto-created collaboration pod",
	})
	if err != nil {
		return types.Pod{}, err
	}
	pod.Members = append(pod.Members, types.Member{
		UserId:   partnerId,
		RoleId:   types.DefaultRoleId,
		Role:     types.RoleLabelMember,
		JoinedAt: pod.CreatedAt,
	})

	if err := s.store(ctx, pod); err != nil {
		return types.Pod{}, err
	}

	s.notify(ctx, partnerId, types.NotificationPodCreated,
		"A collaborator started a pod with you: "+pod.Name,
		types.PodMeta{PodId: pod.Id, PodName: pod.Name, UserId: ownerId},
	)
	return pod, nil
}

func (s *Service) store(ctx context.Context, pod types.Pod) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.CreatePod(ctx, pod); err != nil {
		return apperr.Wrap(apperr.Failed, "create pod", err)
	}

	s.log.WithFields(logrus.Fields{"pod_id": pod.Id, "owner_id": pod.OwnerId}).Info("pod created")
	return nil
}

func newPod(ownerId string, p CreateParams) (types.Pod, error) {
	if ownerId == "" {
		return types.Pod{}, apperr.New(apperr.Invalid, "owner is required")
	}
	if err := input.Validate(p); err != nil {
		return types.Pod{}, err
	}

	name := input.Clean(p.Name)
	if name == "" {
		return types.Pod{}, apperr.New(apperr.Invalid, "name is required")
	}

	roles, err := buildRoles(p.Roles)
	if err != nil {
		return types.Pod{}, err
	}

	id, err := shortid.Generate()
	if err != nil {
		return types.Pod{}, apperr.Wrap(apperr.Failed, "generate pod id", err)
	}

	visibility := p.Visibility
	if visibility == "" {
		visibility = types.VisibilityPublic
	}

	now := types.Now()
	return types.Pod{
		Id:          id,
		OwnerId:     ownerId,
		Name:        name,
		Description: input.Clean(p.Description),
		Tags:        input.CleanAll(p.Tags),
		Visibility:  visibility,
		Roles:       roles,
		Members: []types.Member{
			{UserId: ownerId, RoleId: types.DefaultRoleId, Role: types.RoleLabelOwner, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get returns a pod. Private pods are visible to their members only.
func (s *Service) Get(ctx context.Context, podId, viewerId string) (types.Pod, error) {
	pod, err := s.loadPod(ctx, podId)
	if err != nil {
		return types.Pod{}, err
	}

	if pod.Visibility == types.VisibilityPrivate && !pod.IsMember(viewerId) && pod.OwnerId != viewerId {
		return types.Pod{}, apperr.New(apperr.Forbidden, "this pod is private")
	}
	return pod, nil
}

func (s *Service) ListOwned(ctx context.Context, ownerId string) ([]types.Pod, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pods, err := s.repo.ListPodsByOwner(ctx, ownerId)
	if err != nil {
		return nil, apperr.Wrap(apperr.Failed, "list owned pods", err)
	}
	if pods == nil {
		pods = []types.Pod{}
	}
	return pods, nil
}

func (s *Service) ListForMember(ctx context.Context, userId string) ([]types.Pod, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pods, err := s.repo.ListPodsByMember(ctx, userId)
	if err != nil {
		return nil, apperr.Wrap(apperr.Failed, "list member pods", err)
	}
	if pods == nil {
		pods = []types.Pod{}
	}
	return pods, nil
}

func (s *Service) loadPod(ctx context.Context, podId string) (types.Pod, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pod, err := s.repo.GetPod(ctx, podId)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return types.Pod{}, apperr.New(apperr.NotFound, "pod not found")
	case err != nil:
		return types.Pod{}, apperr.Wrap(apperr.Failed, "load pod", err)
	}

	if pod.Boost.Active && !types.Now().Before(pod.Boost.EndsAt) {
		pod.Boost = types.Boost{}
	}
	return pod, nil
}

// loadOwned loads a pod and checks that actorId owns it.
func (s *Service) loadOwned(ctx context.Context, podId, actorId string) (types.Pod, error) {
	pod, err := s.loadPod(ctx, podId)
	if err != nil {
		return types.Pod{}, err
	}
	if pod.OwnerId != actorId {
		return types.Pod{}, apperr.New(apperr.Forbidden, "only the pod owner can do this")
	}
	return pod, nil
}

// write runs a store mutation under the store timeout.
func (s *Service) write(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

// notify persists and pushes a notification. The triggering mutation has
// already committed, so failures are logged rather than returned.
func (s *Service) notify(ctx context.Context, userId, typ, message string, meta types.PodMeta) {
	if _, err := s.notifier.Push(ctx, userId, typ, message, meta); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userId,
			"type":    typ,
			"pod_id":  meta.PodId,
		}).WithError(err).Error("failed to notify")
	}
}

// directRoom opens the owner↔member conversation that follows an admission.
func (s *Service) directRoom(ctx context.Context, a, b string) *types.Room {
	room, err := s.rooms.GetOrCreateDirectRoom(ctx, a, b)
	if err != nil {
		s.log.WithFields(logrus.Fields{"user_a": a, "user_b": b}).WithError(err).Error("failed to open direct room")
		return nil
	}
	return &room
}

func roomIdOf(room *types.Room) string {
	if room == nil {
		return ""
	}
	return room.Id
}

func buildRoles(params []RoleParams) ([]types.Role, error) {
	roles := make([]types.Role, 0, len(params))
	seen := make(map[string]struct{}, len(params))

	for _, p := range params {
		r := types.Role{
			Id:             p.Id,
			Title:          input.Clean(p.Title),
			Description:    input.Clean(p.Description),
			RequiredSkills: input.CleanAll(p.RequiredSkills),
			SlotCount:      p.SlotCount,
		}
		if r.Id == "" {
			r.Id = uuid.NewString()
		}
		if r.Title == "" {
			return nil, apperr.New(apperr.Invalid, "title is required")
		}
		if _, dup := seen[r.Id]; dup {
			return nil, apperr.Newf(apperr.Invalid, "role %q appears more than once", r.Id)
		}
		seen[r.Id] = struct{}{}
		roles = append(roles, r)
	}
	return roles, nil
}

func activity(kind types.ActivityType, actorId string, kv ...string) types.ActivityEntry {
	entry := types.ActivityEntry{Type: kind, ActorId: actorId, CreatedAt: types.Now()}
	if len(kv) > 0 {
		entry.Meta = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if kv[i+1] != "" {
				entry.Meta[kv[i]] = kv[i+1]
			}
		}
	}
	return entry
}

// roleLabel is the label a member admitted into roleId carries.
func roleLabel(pod types.Pod, roleId string) string {
	if r, ok := pod.Role(roleId); ok && roleId != types.DefaultRoleId {
		return r.Title
	}
	return types.RoleLabelMember
}
