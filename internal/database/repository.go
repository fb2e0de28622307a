package database

import "context"

type RelayRepository interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, id int) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUsersByIds(ctx context.Context, ids []int) ([]User, error)
	ListUsersExcept(ctx context.Context, userId int) ([]User, error)
	SearchUsersByName(ctx context.Context, userId int, term string) ([]User, error)
	UpdatePresence(ctx context.Context, params UpdatePresenceParams) error
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessages(ctx context.Context, userId, peerId int) ([]Message, error)
	GetLastMessage(ctx context.Context, userId, peerId int) (Message, error)
	DeleteMessage(ctx context.Context, id int) error
	ListConversationPeers(ctx context.Context, userId int) ([]int, error)
	CreateCall(ctx context.Context, params CreateCallParams) (Call, error)
	UpdateRecentCallDuration(ctx context.Context, params UpdateCallDurationParams) error
	GetCallHistory(ctx context.Context, userId, peerId, limit int) ([]Call, error)
}
