package database

import (
	"context"
	"errors"
	"time"

	"github.com/Ravindra2377/KPR/internal/types"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with existing state")
	ErrRoleFull = errors.New("role has no open slots")
)

// Repository is the durable store. Every pod mutation is applied as a single
// conditional operation so concurrent callers cannot overfill a role or
// duplicate a pending record.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	CreateNotification(ctx context.Context, n types.Notification) error
	ListNotifications(ctx context.Context, userId string, limit int) ([]types.Notification, error)
	CountUnreadNotifications(ctx context.Context, userId string) (int, error)
	MarkNotificationRead(ctx context.Context, id, userId string) error
	MarkAllNotificationsRead(ctx context.Context, userId string) (int, error)

	// GetOrCreateDirectRoom returns the room stored under room.PairKey, inserting
	// room when there is none. The bool reports whether room was inserted.
	GetOrCreateDirectRoom(ctx context.Context, room types.Room) (types.Room, bool, error)
	GetRoom(ctx context.Context, id string) (types.Room, error)

	CreateMessage(ctx context.Context, msg types.Message) error
	// ListMessages returns up to limit messages of the room created before
	// before (any time when zero), oldest first.
	ListMessages(ctx context.Context, roomId string, before time.Time, limit int) ([]types.Message, error)
	// MarkMessagesRead adds readerId to ReadBy on every message of the room
	// that does not have it yet and returns how many changed.
	MarkMessagesRead(ctx context.Context, roomId, readerId string) (int, error)

	CreatePod(ctx context.Context, pod types.Pod) error
	GetPod(ctx context.Context, id string) (types.Pod, error)
	ListPodsByOwner(ctx context.Context, ownerId string) ([]types.Pod, error)
	ListPodsByMember(ctx context.Context, userId string) ([]types.Pod, error)
	AddApplicant(ctx context.Context, podId string, a types.Applicant, entry types.ActivityEntry) error
	RemoveApplicant(ctx context.Context, podId, applicantId string, entry types.ActivityEntry) (types.Applicant, error)
	AdmitApplicant(ctx context.Context, podId, applicantId string, m types.Member, entry types.ActivityEntry) error
	AddInvite(ctx context.Context, podId string, inv types.Invite, entry types.ActivityEntry) error
	AcceptInvite(ctx context.Context, podId, inviteId string, m types.Member, entry types.ActivityEntry) error
	DeclineInvite(ctx context.Context, podId, inviteId string, entry types.ActivityEntry) error
	RemoveMember(ctx context.Context, podId, userId string, entry types.ActivityEntry) (types.Member, error)
	UpdateRoles(ctx context.Context, podId string, roles []types.Role, entry types.ActivityEntry) error
	SetBoost(ctx context.Context, podId string, boost types.Boost, entry types.ActivityEntry) error

	CreateCollabRequest(ctx context.Context, req types.CollabRequest) error
	GetCollabRequest(ctx context.Context, id string) (types.CollabRequest, error)
	FindCollabRequest(ctx context.Context, fromUserId, toUserId string, status types.CollabStatus) (types.CollabRequest, error)
	ListCollabRequests(ctx context.Context, userId string, incoming bool) ([]types.CollabRequest, error)
	// TransitionCollabRequest moves a pending request to status. It fails with
	// ErrConflict when the request is no longer pending.
	TransitionCollabRequest(ctx context.Context, id string, status types.CollabStatus, reason, roomId string) (types.CollabRequest, error)
}

// MaxNotifications caps a single notification listing.
const MaxNotifications = 200

// MaxMessages caps a single page of room history.
const MaxMessages = 200

func clampLimit(limit int) int {
	return clampTo(limit, MaxNotifications)
}

func clampTo(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// mergeRoles applies updates to current. Existing roles keep their fill
// state; a slot count below the filled count is rejected.
func mergeRoles(current, updates []types.Role) ([]types.Role, error) {
	merged := make([]types.Role, len(current))
	copy(merged, current)

	for _, u := range updates {
		found := false
		for i := range merged {
			if merged[i].Id != u.Id {
				continue
			}
			if u.SlotCount < merged[i].FilledCount {
				return nil, ErrConflict
			}
			merged[i].Title = u.Title
			merged[i].Description = u.Description
			merged[i].RequiredSkills = u.RequiredSkills
			merged[i].SlotCount = u.SlotCount
			found = true
			break
		}
		if !found {
			u.FilledCount = 0
			u.FilledBy = nil
			merged = append(merged, u)
		}
	}
	return merged, nil
}
