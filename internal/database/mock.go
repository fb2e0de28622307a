package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRelayRepository struct {
	mock.Mock
}

func (m *MockRelayRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRelayRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRelayRepository) GetUserById(ctx context.Context, id int) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRelayRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRelayRepository) GetUsersByIds(ctx context.Context, ids []int) ([]User, error) {
	args := m.Called(ids)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRelayRepository) ListUsersExcept(ctx context.Context, userId int) ([]User, error) {
	args := m.Called(userId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRelayRepository) SearchUsersByName(ctx context.Context, userId int, term string) ([]User, error) {
	args := m.Called(userId, term)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRelayRepository) UpdatePresence(ctx context.Context, params UpdatePresenceParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockRelayRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRelayRepository) GetMessages(ctx context.Context, userId, peerId int) ([]Message, error) {
	args := m.Called(userId, peerId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRelayRepository) GetLastMessage(ctx context.Context, userId, peerId int) (Message, error) {
	args := m.Called(userId, peerId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRelayRepository) DeleteMessage(ctx context.Context, id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRelayRepository) ListConversationPeers(ctx context.Context, userId int) ([]int, error) {
	args := m.Called(userId)
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockRelayRepository) CreateCall(ctx context.Context, params CreateCallParams) (Call, error) {
	args := m.Called(params)
	return args.Get(0).(Call), args.Error(1)
}
func (m *MockRelayRepository) UpdateRecentCallDuration(ctx context.Context, params UpdateCallDurationParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockRelayRepository) GetCallHistory(ctx context.Context, userId, peerId, limit int) ([]Call, error) {
	args := m.Called(userId, peerId, limit)
	return args.Get(0).([]Call), args.Error(1)
}
