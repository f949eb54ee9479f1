package database

import (
	"github.com/stretchr/testify/mock"
)

type MockPomochatRepository struct {
	mock.Mock
}

func (m *MockPomochatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockPomochatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPomochatRepository) GetRoomById(id string) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPomochatRepository) UpdateRoomState(roomId string, patch RoomStatePatch) (Room, error) {
	args := m.Called(roomId, patch)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPomochatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockPomochatRepository) GetMessage(id int64) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockPomochatRepository) GetMessages(roomId string) ([]Message, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Message), args.Error(1)
}
