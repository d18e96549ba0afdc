package database

import (
	"context"
	"time"

	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateNotification(ctx context.Context, n types.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
func (m *MockRepository) ListNotifications(ctx context.Context, userId string, limit int) ([]types.Notification, error) {
	args := m.Called(ctx, userId, limit)
	return args.Get(0).([]types.Notification), args.Error(1)
}
func (m *MockRepository) CountUnreadNotifications(ctx context.Context, userId string) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) MarkNotificationRead(ctx context.Context, id, userId string) error {
	args := m.Called(ctx, id, userId)
	return args.Error(0)
}
func (m *MockRepository) MarkAllNotificationsRead(ctx context.Context, userId string) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) GetOrCreateDirectRoom(ctx context.Context, room types.Room) (types.Room, bool, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(types.Room), args.Bool(1), args.Error(2)
}
func (m *MockRepository) GetRoom(ctx context.Context, id string) (types.Room, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Room), args.Error(1)
}
func (m *MockRepository) CreateMessage(ctx context.Context, msg types.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockRepository) ListMessages(ctx context.Context, roomId string, before time.Time, limit int) ([]types.Message, error) {
	args := m.Called(ctx, roomId, before, limit)
	return args.Get(0).([]types.Message), args.Error(1)
}
func (m *MockRepository) MarkMessagesRead(ctx context.Context, roomId, readerId string) (int, error) {
	args := m.Called(ctx, roomId, readerId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) CreatePod(ctx context.Context, pod types.Pod) error {
	args := m.Called(ctx, pod)
	return args.Error(0)
}
func (m *MockRepository) GetPod(ctx context.Context, id string) (types.Pod, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Pod), args.Error(1)
}
func (m *MockRepository) ListPodsByOwner(ctx context.Context, ownerId string) ([]types.Pod, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]types.Pod), args.Error(1)
}
func (m *MockRepository) ListPodsByMember(ctx context.Context, userId string) ([]types.Pod, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]types.Pod), args.Error(1)
}
func (m *MockRepository) AddApplicant(ctx context.Context, podId string, a types.Applicant, entry types.ActivityEntry) error {
	args := m.Called(ctx, podId, a, entry)
	return args.Error(0)
}
func (m *MockRepository) RemoveApplicant(ctx context.Context, podId, applicantId string, entry types.ActivityEntry) (types.Applicant, error) {
	args := m.Called(ctx, podId, applicantId, entry)
	return args.Get(0).(types.Applicant), args.Error(1)
}
func (m *MockRepository) AdmitApplicant(ctx context.Context, podId, applicantId string, member types.Member, entry types.ActivityEntry) error {
	args := m.Called(ctx, podId, applicantId, member, entry)
	return args.Error(0)
}
func (m *MockRepository) AddInvite(ctx context.Context, podId string, inv types.Invite, entry types.ActivityEntry) error {
	args := m.Called(ctx, podId, inv, entry)
	return args.Error(0)
}
func (m *MockRepository) AcceptInvite(ctx context.Context, podId, inviteId string, member types.Member, entry types.ActivityEntry) error {
	args := m.Called(ctx, podId, inviteId, member, entry)
	return args.Error(0)
}
func (m *MockRepository) DeclineInvite(ctx context.Context, podId, inviteId string, entry types.ActivityEntry) error {
	args := m.Called(ctx, podId, inviteId, entry)
	return args.Error(0)
}
func (m *MockRepository) RemoveMember(ctx context.Context, podId, userId string, entry types.ActivityEntry) (types.Member, error) {
	args := m.Called(ctx, podId, userId, entry)
	return args.Get(0).(types.Member), args.Error(1)
}
func (m *MockRepository) UpdateRoles(ctx context.Context, podId string, roles []types.Role, entry types.ActivityEntry) error {
	args := m.Called(ctx, podId, roles, entry)
	return args.Error(0)
}
func (m *MockRepository) SetBoost(ctx context.Context, podId string, boost types.Boost, entry types.ActivityEntry) error {
	args := m.Called(ctx, podId, boost, entry)
	return args.Error(0)
}
func (m *MockRepository) CreateCollabRequest(ctx context.Context, req types.CollabRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
func (m *MockRepository) GetCollabRequest(ctx context.Context, id string) (types.CollabRequest, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.CollabRequest), args.Error(1)
}
func (m *MockRepository) FindCollabRequest(ctx context.Context, fromUserId, toUserId string, status types.CollabStatus) (types.CollabRequest, error) {
	args := m.Called(ctx, fromUserId, toUserId, status)
	return args.Get(0).(types.CollabRequest), args.Error(1)
}
func (m *MockRepository) ListCollabRequests(ctx context.Context, userId string, incoming bool) ([]types.CollabRequest, error) {
	args := m.Called(ctx, userId, incoming)
	return args.Get(0).([]types.CollabRequest), args.Error(1)
}
func (m *MockRepository) TransitionCollabRequest(ctx context.Context, id string, status types.CollabStatus, reason, roomId string) (types.CollabRequest, error) {
	args := m.Called(ctx, id, status, reason, roomId)
	return args.Get(0).(types.CollabRequest), args.Error(1)
}
