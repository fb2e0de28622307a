package types

import (
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile:
		return true
	}
	return false
}

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

type CallStatus string

const (
	CallStatusMissed   CallStatus = "missed"
	CallStatusAnswered CallStatus = "answered"
	CallStatusRejected CallStatus = "rejected"
)

// Direction tags a message relative to the user it is delivered to.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

type User struct {
	Id       int       `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Avatar   string    `json:"avatar"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

// AuthenticatedUser is the payload of auth_success.
type AuthenticatedUser struct {
	Id     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Token  string `json:"token"`
}

type Contact struct {
	Id              int       `json:"id"`
	Name            string    `json:"name"`
	Avatar          string    `json:"avatar"`
	Online          bool      `json:"online"`
	LastSeen        time.Time `json:"lastSeen"`
	LastMessage     string    `json:"lastMessage"`
	LastTime        string    `json:"lastTime"`
	Muted           bool      `json:"muted"`
	HasConversation *bool     `json:"hasConversation,omitempty"`
	IsSearchResult  bool      `json:"isSearchResult,omitempty"`
}

type Message struct {
	Id          int         `json:"id"`
	SeqId       int         `json:"seqId"`
	Text        string      `json:"text"`
	SenderId    int         `json:"senderId"`
	ReceiverId  int         `json:"receiverId"`
	Timestamp   time.Time   `json:"timestamp"`
	MessageType MessageType `json:"messageType"`
	FileUrl     string      `json:"fileUrl"`
	FileName    string      `json:"fileName"`
	FileSize    string      `json:"fileSize"`
	Read        bool        `json:"read"`
	Type        Direction   `json:"type"`
}

type Call struct {
	Id             int        `json:"id"`
	CallerId       int        `json:"callerId"`
	CallerName     string     `json:"callerName"`
	CallerAvatar   string     `json:"callerAvatar"`
	ReceiverId     int        `json:"receiverId"`
	ReceiverName   string     `json:"receiverName"`
	ReceiverAvatar string     `json:"receiverAvatar"`
	CallType       CallType   `json:"callType"`
	Status         CallStatus `json:"status"`
	Duration       int        `json:"duration"`
	Timestamp      time.Time  `json:"timestamp"`
}
