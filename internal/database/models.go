package database

import "time"

type User struct {
	Id           int
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Avatar       string
	Online       bool
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id          int
	SeqId       int
	SenderId    int
	ReceiverId  int
	Text        string
	MessageType string
	FileUrl     string
	FileName    string
	FileSize    string
	Read        bool
	CreatedAt   time.Time
}

type Call struct {
	Id             int
	CallerId       int
	CallerName     string
	CallerAvatar   string
	ReceiverId     int
	ReceiverName   string
	ReceiverAvatar string
	CallType       string
	Status         string
	Duration       int
	CreatedAt      time.Time
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
}

type UpdatePresenceParams struct {
	UserId   int
	Online   bool
	LastSeen time.Time
	// Avatar is only written when non-empty.
	Avatar string
}

type CreateMessageParams struct {
	SenderId    int
	ReceiverId  int
	Text        string
	MessageType string
	FileUrl     string
	FileName    string
	FileSize    string
	CreatedAt   time.Time
}

type CreateCallParams struct {
	CallerId   int
	ReceiverId int
	CallType   string
	Status     string
	Duration   int
	CreatedAt  time.Time
}

type UpdateCallDurationParams struct {
	UserA    int
	UserB    int
	Since    time.Time
	Duration int
}

// conversationKey orders a pair of user ids so both directions map to the same row.
func conversationKey(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
