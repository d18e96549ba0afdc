package database

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Ravindra2377/KPR/internal/types"
)

// MemoryRepository keeps everything in process. It backs local development
// and the behavioral tests, with a single mutex standing in for the
// conditional updates of the real stores.
type MemoryRepository struct {
	mu            sync.Mutex
	notifications []types.Notification
	rooms         map[string]types.Room
	roomsByPair   map[string]string
	messages      map[string][]types.Message
	pods          map[string]*types.Pod
	collab        map[string]types.CollabRequest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms:       make(map[string]types.Room),
		roomsByPair: make(map[string]string),
		messages:    make(map[string][]types.Message),
		pods:        make(map[string]*types.Pod),
		collab:      make(map[string]types.CollabRequest),
	}
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryRepository) Close() error {
	return nil
}

func (m *MemoryRepository) CreateNotification(ctx context.Context, n types.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MemoryRepository) ListNotifications(ctx context.Context, userId string, limit int) ([]types.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []types.Notification
	for _, n := range m.notifications {
		if n.UserId == userId {
			list = append(list, n)
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Read != list[j].Read {
			return !list[i].Read
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	if limit = clampLimit(limit); len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemoryRepository) CountUnreadNotifications(ctx context.Context, userId string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, n := range m.notifications {
		if n.UserId == userId && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MemoryRepository) MarkNotificationRead(ctx context.Context, id, userId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].Id == id && m.notifications[i].UserId == userId {
			m.notifications[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepository) MarkAllNotificationsRead(ctx context.Context, userId string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for i := range m.notifications {
		if m.notifications[i].UserId == userId && !m.notifications[i].Read {
			m.notifications[i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (m *MemoryRepository) GetOrCreateDirectRoom(ctx context.Context, room types.Room) (types.Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.roomsByPair[room.PairKey]; ok {
		return cloneRoom(m.rooms[id]), false, nil
	}

	m.rooms[room.Id] = cloneRoom(room)
	m.roomsByPair[room.PairKey] = room.Id
	return cloneRoom(room), true, nil
}

func (m *MemoryRepository) GetRoom(ctx context.Context, id string) (types.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return types.Room{}, ErrNotFound
	}
	return cloneRoom(room), nil
}

func (m *MemoryRepository) CreateMessage(ctx context.Context, msg types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[msg.RoomId]; !ok {
		return ErrNotFound
	}
	msg.ReadBy = slices.Clone(msg.ReadBy)
	m.messages[msg.RoomId] = append(m.messages[msg.RoomId], msg)
	return nil
}

func (m *MemoryRepository) ListMessages(ctx context.Context, roomId string, before time.Time, limit int) ([]types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.messages[roomId]
	end := len(history)
	if !before.IsZero() {
		end = sort.Search(len(history), func(i int) bool { return !history[i].CreatedAt.Before(before) })
	}
	start := max(end-clampTo(limit, MaxMessages), 0)

	list := make([]types.Message, 0, end-start)
	for _, msg := range history[start:end] {
		msg.ReadBy = slices.Clone(msg.ReadBy)
		list = append(list, msg)
	}
	return list, nil
}

func (m *MemoryRepository) MarkMessagesRead(ctx context.Context, roomId, readerId string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	history := m.messages[roomId]
	for i := range history {
		if history[i].IsReadBy(readerId) {
			continue
		}
		history[i].ReadBy = append(history[i].ReadBy, readerId)
		updated++
	}
	return updated, nil
}

func (m *MemoryRepository) CreatePod(ctx context.Context, pod types.Pod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pods[pod.Id]; ok {
		return ErrConflict
	}
	p := clonePod(pod)
	m.pods[pod.Id] = &p
	return nil
}

func (m *MemoryRepository) GetPod(ctx context.Context, id string) (types.Pod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pods[id]
	if !ok {
		return types.Pod{}, ErrNotFound
	}
	return clonePod(*p), nil
}

func (m *MemoryRepository) ListPodsByOwner(ctx context.Context, ownerId string) ([]types.Pod, error) {
	return m.listPods(func(p *types.Pod) bool { return p.OwnerId == ownerId }), nil
}

func (m *MemoryRepository) ListPodsByMember(ctx context.Context, userId string) ([]types.Pod, error) {
	return m.listPods(func(p *types.Pod) bool { return p.IsMember(userId) }), nil
}

func (m *MemoryRepository) listPods(match func(p *types.Pod) bool) []types.Pod {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pods []types.Pod
	for _, p := range m.pods {
		if match(p) {
			pods = append(pods, clonePod(*p))
		}
	}

	sort.Slice(pods, func(i, j int) bool {
		return pods[i].CreatedAt.After(pods[j].CreatedAt)
	})
	return pods
}

func (m *MemoryRepository) AddApplicant(ctx context.Context, podId string, a types.Applicant, entry types.ActivityEntry) error {
	return m.mutatePod(podId, entry, func(p *types.Pod) error {
		if p.IsMember(a.UserId) {
			return ErrConflict
		}
		if _, ok := p.PendingApplicationOf(a.UserId); ok {
			return ErrConflict
		}
		p.Applicants = append(p.Applicants, a)
		return nil
	})
}

func (m *MemoryRepository) RemoveApplicant(ctx context.Context, podId, applicantId string, entry types.ActivityEntry) (types.Applicant, error) {
	var removed types.Applicant
	err := m.mutatePod(podId, entry, func(p *types.Pod) error {
		idx := slices.IndexFunc(p.Applicants, func(a types.Applicant) bool {
			return a.Id == applicantId && a.Status == types.StatusPending
		})
		if idx < 0 {
			return ErrNotFound
		}
		removed = p.Applicants[idx]
		p.Applicants = slices.Delete(p.Applicants, idx, idx+1)
		return nil
	})
	return removed, err
}

func (m *MemoryRepository) AdmitApplicant(ctx context.Context, podId, applicantId string, member types.Member, entry types.ActivityEntry) error {
	return m.mutatePod(podId, entry, func(p *types.Pod) error {
		idx := slices.IndexFunc(p.Applicants, func(a types.Applicant) bool {
			return a.Id == applicantId && a.Status == types.StatusPending
		})
		if idx < 0 {
			return ErrNotFound
		}
		if err := admit(p, member); err != nil {
			return err
		}
		p.Applicants = slices.Delete(p.Applicants, idx, idx+1)
		return nil
	})
}

func (m *MemoryRepository) AddInvite(ctx context.Context, podId string, inv types.Invite, entry types.ActivityEntry) error {
	return m.mutatePod(podId, entry, func(p *types.Pod) error {
		if p.IsMember(inv.UserId) {
			return ErrConflict
		}
		if _, ok := p.PendingInviteOf(inv.UserId); ok {
			return ErrConflict
		}
		p.Invites = append(p.Invites, inv)
		return nil
	})
}

func (m *MemoryRepository) AcceptInvite(ctx context.Context, podId, inviteId string, member types.Member, entry types.ActivityEntry) error {
	return m.mutatePod(podId, entry, func(p *types.Pod) error {
		idx := slices.IndexFunc(p.Invites, func(i types.Invite) bool {
			return i.Id == inviteId && i.Status == types.StatusPending
		})
		if idx < 0 {
			return ErrNotFound
		}
		if err := admit(p, member); err != nil {
			return err
		}
		p.Invites[idx].Status = types.StatusAccepted
		p.Applicants = slices.DeleteFunc(p.Applicants, func(a types.Applicant) bool {
			return a.UserId == member.UserId && a.Status == types.StatusPending
		})
		return nil
	})
}

func (m *MemoryRepository) DeclineInvite(ctx context.Context, podId, inviteId string, entry types.ActivityEntry) error {
	return m.mutatePod(podId, entry, func(p *types.Pod) error {
		idx := slices.IndexFunc(p.Invites, func(i types.Invite) bool {
			return i.Id == inviteId && i.Status == types.StatusPending
		})
		if idx < 0 {
			return ErrNotFound
		}
		p.Invites[idx].Status = types.StatusRejected
		return nil
	})
}

func (m *MemoryRepository) RemoveMember(ctx context.Context, podId, userId string, entry types.ActivityEntry) (types.Member, error) {
	var removed types.Member
	err := m.mutatePod(podId, entry, func(p *types.Pod) error {
		idx := slices.IndexFunc(p.Members, func(mem types.Member) bool { return mem.UserId == userId })
		if idx < 0 {
			return ErrNotFound
		}
		removed = p.Members[idx]
		p.Members = slices.Delete(p.Members, idx, idx+1)

		for i := range p.Roles {
			if p.Roles[i].Id == removed.RoleId && removed.RoleId != types.DefaultRoleId {
				p.Roles[i].FilledCount = max(p.Roles[i].FilledCount-1, 0)
				p.Roles[i].FilledBy = slices.DeleteFunc(p.Roles[i].FilledBy, func(u string) bool { return u == userId })
			}
		}
		return nil
	})
	return removed, err
}

func (m *MemoryRepository) UpdateRoles(ctx context.Context, podId string, roles []types.Role, entry types.ActivityEntry) error {
	return m.mutatePod(podId, entry, func(p *types.Pod) error {
		merged, err := mergeRoles(p.Roles, roles)
		if err != nil {
			return err
		}
		p.Roles = merged
		return nil
	})
}

func (m *MemoryRepository) SetBoost(ctx context.Context, podId string, boost types.Boost, entry types.ActivityEntry) error {
	return m.mutatePod(podId, entry, func(p *types.Pod) error {
		p.Boost = boost
		return nil
	})
}

// mutatePod applies fn to the stored pod under the lock. Nothing is written
// when fn fails.
func (m *MemoryRepository) mutatePod(podId string, entry types.ActivityEntry, fn func(p *types.Pod) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.pods[podId]
	if !ok {
		return ErrNotFound
	}

	p := clonePod(*stored)
	if err := fn(&p); err != nil {
		return err
	}

	p.Activity = append(p.Activity, entry)
	p.UpdatedAt = entry.CreatedAt
	m.pods[podId] = &p
	return nil
}

func (m *MemoryRepository) CreateCollabRequest(ctx context.Context, req types.CollabRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.collab {
		if r.FromUserId == req.FromUserId && r.ToUserId == req.ToUserId && r.Status == types.CollabPending {
			return ErrConflict
		}
	}
	m.collab[req.Id] = req
	return nil
}

func (m *MemoryRepository) GetCollabRequest(ctx context.Context, id string) (types.CollabRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.collab[id]
	if !ok {
		return types.CollabRequest{}, ErrNotFound
	}
	return req, nil
}

func (m *MemoryRepository) FindCollabRequest(ctx context.Context, fromUserId, toUserId string, status types.CollabStatus) (types.CollabRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.collab {
		if r.FromUserId == fromUserId && r.ToUserId == toUserId && r.Status == status {
			return r, nil
		}
	}
	return types.CollabRequest{}, ErrNotFound
}

func (m *MemoryRepository) ListCollabRequests(ctx context.Context, userId string, incoming bool) ([]types.CollabRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []types.CollabRequest
	for _, r := range m.collab {
		if (incoming && r.ToUserId == userId) || (!incoming && r.FromUserId == userId) {
			list = append(list, r)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (m *MemoryRepository) TransitionCollabRequest(ctx context.Context, id string, status types.CollabStatus, reason, roomId string) (types.CollabRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.collab[id]
	if !ok {
		return types.CollabRequest{}, ErrNotFound
	}
	if req.Status != types.CollabPending {
		return types.CollabRequest{}, ErrConflict
	}

	req.Status = status
	req.Reason = reason
	req.RoomId = roomId
	req.UpdatedAt = types.Now()
	m.collab[id] = req
	return req, nil
}

// admit adds member to p, claiming a slot on its role.
func admit(p *types.Pod, member types.Member) error {
	if p.IsMember(member.UserId) {
		return ErrConflict
	}

	if member.RoleId != types.DefaultRoleId {
		idx := slices.IndexFunc(p.Roles, func(r types.Role) bool { return r.Id == member.RoleId })
		if idx < 0 {
			return ErrNotFound
		}
		if !p.Roles[idx].Open() {
			return ErrRoleFull
		}
		p.Roles[idx].FilledCount++
		p.Roles[idx].FilledBy = append(p.Roles[idx].FilledBy, member.UserId)
	}

	p.Members = append(p.Members, member)
	return nil
}

func cloneRoom(r types.Room) types.Room {
	r.Members = slices.Clone(r.Members)
	return r
}

func clonePod(p types.Pod) types.Pod {
	p.Tags = slices.Clone(p.Tags)
	p.Roles = slices.Clone(p.Roles)
	for i := range p.Roles {
		p.Roles[i].RequiredSkills = slices.Clone(p.Roles[i].RequiredSkills)
		p.Roles[i].FilledBy = slices.Clone(p.Roles[i].FilledBy)
	}
	p.Members = slices.Clone(p.Members)
	p.Applicants = slices.Clone(p.Applicants)
	p.Invites = slices.Clone(p.Invites)
	p.Activity = slices.Clone(p.Activity)
	return p
}
