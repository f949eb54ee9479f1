package database

type PomochatRepository interface {
	Ping() error
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomById(id string) (Room, error)
	UpdateRoomState(roomId string, patch RoomStatePatch) (Room, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessage(id int64) (Message, error)
	GetMessages(roomId string) ([]Message, error)
}
