package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/go-relay/internal/types"
)

// Inbound events.
const (
	EventLogin              = "login"
	EventRegister           = "register"
	EventAuthenticate       = "authenticate"
	EventGetAllUsers        = "get_all_users"
	EventGetContacts        = "get_contacts"
	EventSearchUsers        = "search_users"
	EventGetConversation    = "get_conversation"
	EventSendMessage        = "send_message"
	EventSendFileMessage    = "send_file_message"
	EventDeleteMessage      = "delete_message"
	EventInitiateCall       = "initiate_call"
	EventAnswerCall         = "answer_call"
	EventRejectCall         = "reject_call"
	EventEndCall            = "end_call"
	EventWebrtcOffer        = "webrtc_offer"
	EventWebrtcAnswer       = "webrtc_answer"
	EventWebrtcIceCandidate = "webrtc_ice_candidate"
	EventGetCallHistory     = "get_call_history"
)

// Outbound events.
const (
	EventAuthSuccess             = "auth_success"
	EventAuthFailed              = "auth_failed"
	EventNewMessage              = "new_message"
	EventUserOnline              = "user_online"
	EventUserOffline             = "user_offline"
	EventContactsList            = "contacts_list"
	EventAllUsersList            = "all_users_list"
	EventConversationHistory     = "conversation_history"
	EventMessageDeleted          = "message_deleted"
	EventNewUserAdded            = "new_user_added"
	EventSearchUsersResults      = "search_users_results"
	EventFileMessageNotification = "file_message_notification"
	EventIncomingCall            = "incoming_call"
	EventCallInitiated           = "call_initiated"
	EventCallAnswered            = "call_answered"
	EventCallRejected            = "call_rejected"
	EventCallEnded               = "call_ended"
	EventCallFailed              = "call_failed"
	EventCallHistory             = "call_history"
	EventSessionReplaced         = "session_replaced"
	EventError                   = "error"
)

const (
	reasonInvalidCredentials = "Invalid email or password"
	reasonUserExists         = "User already exists with this email"
	reasonMissingFields      = "Name, email and password are required"
	reasonNoToken            = "No token provided"
	reasonAuthFailed         = "Authentication failed"
	reasonUserNotFound       = "User not found"
	reasonLoginFailed        = "Login failed"
	reasonRegisterFailed     = "Registration failed"
	reasonNotAuthenticated   = "Not authenticated"
	reasonPeerOffline        = "peer offline"
	reasonDisconnected       = "disconnected"
	reasonInvalidMessage     = "invalid message format"
	reasonUnknownEvent       = "unknown event"
	reasonSessionReplaced    = "signed in from another connection"
)

var errInvalidData = errors.New("invalid data")

type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type validator interface {
	Validate() error
}

// decode unmarshals the event data into v and validates it. A missing data
// field decodes as an empty object.
func (m *ClientMessage) decode(v validator) error {
	data := m.Data
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidData, err)
	}

	return v.Validate()
}

type ServerMessage struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newServerMessage(event string, data any) *ServerMessage {
	return &ServerMessage{
		Event:     event,
		Data:      data,
		Timestamp: Now(),
	}
}

type LoginData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate accepts empty credentials; they fail authentication instead.
func (d *LoginData) Validate() error { return nil }

type RegisterData struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d *RegisterData) Validate() error { return nil }

type AuthenticateData struct {
	Token string `json:"token"`
}

func (d *AuthenticateData) Validate() error { return nil }

type SearchUsersData struct {
	SearchTerm string `json:"searchTerm"`
}

func (d *SearchUsersData) Validate() error { return nil }

type ContactData struct {
	ContactId int `json:"contactId"`
}

func (d *ContactData) Validate() error {
	if d.ContactId <= 0 {
		return fmt.Errorf("%w: contactId is required", errInvalidData)
	}
	return nil
}

type SendMessageData struct {
	Text        string            `json:"text"`
	ReceiverId  int               `json:"receiverId"`
	MessageType types.MessageType `json:"messageType"`
	FileUrl     string            `json:"fileUrl"`
	FileName    string            `json:"fileName"`
	FileSize    string            `json:"fileSize"`
}

func (d *SendMessageData) Validate() error {
	if d.ReceiverId <= 0 {
		return fmt.Errorf("%w: receiverId is required", errInvalidData)
	}
	if d.MessageType == "" {
		d.MessageType = types.MessageTypeText
	}
	if !d.MessageType.Valid() {
		return fmt.Errorf("%w: unknown messageType %q", errInvalidData, d.MessageType)
	}
	return nil
}

type SendFileMessageData struct {
	ReceiverId  int               `json:"receiverId"`
	MessageType types.MessageType `json:"messageType"`
	FileUrl     string            `json:"fileUrl"`
	FileName    string            `json:"fileName"`
	FileSize    string            `json:"fileSize"`
}

func (d *SendFileMessageData) Validate() error {
	if d.ReceiverId <= 0 {
		return fmt.Errorf("%w: receiverId is required", errInvalidData)
	}
	if d.MessageType == types.MessageTypeText || !d.MessageType.Valid() {
		return fmt.Errorf("%w: file messageType must be image, video or file", errInvalidData)
	}
	if strings.TrimSpace(d.FileUrl) == "" {
		return fmt.Errorf("%w: fileUrl is required", errInvalidData)
	}
	return nil
}

type DeleteMessageData struct {
	MessageId int `json:"messageId"`
	ContactId int `json:"contactId"`
}

func (d *DeleteMessageData) Validate() error {
	if d.MessageId <= 0 {
		return fmt.Errorf("%w: messageId is required", errInvalidData)
	}
	return nil
}

type InitiateCallData struct {
	ReceiverId int            `json:"receiverId"`
	CallType   types.CallType `json:"callType"`
}

func (d *InitiateCallData) Validate() error {
	if d.ReceiverId <= 0 {
		return fmt.Errorf("%w: receiverId is required", errInvalidData)
	}
	if !d.CallType.Valid() {
		return fmt.Errorf("%w: unknown callType %q", errInvalidData, d.CallType)
	}
	return nil
}

// CallReplyData is the payload of answer_call and reject_call.
type CallReplyData struct {
	CallerId int `json:"callerId"`
}

func (d *CallReplyData) Validate() error {
	if d.CallerId <= 0 {
		return fmt.Errorf("%w: callerId is required", errInvalidData)
	}
	return nil
}

type EndCallData struct {
	OtherUserId int `json:"otherUserId"`
	Duration    int `json:"duration"`
}

func (d *EndCallData) Validate() error {
	if d.OtherUserId <= 0 {
		return fmt.Errorf("%w: otherUserId is required", errInvalidData)
	}
	if d.Duration < 0 {
		return fmt.Errorf("%w: duration cannot be negative", errInvalidData)
	}
	return nil
}

// SignalData carries one of offer, answer or candidate depending on the event.
type SignalData struct {
	To        int             `json:"to"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (d *SignalData) Validate() error {
	if d.To <= 0 {
		return fmt.Errorf("%w: to is required", errInvalidData)
	}
	return nil
}

type ReasonData struct {
	Reason string `json:"reason"`
}

type UserPresence struct {
	UserId int `json:"userId"`
}

type MessageDeleted struct {
	MessageId int `json:"messageId"`
}

type ConversationHistory struct {
	ContactId int             `json:"contactId"`
	Messages  []types.Message `json:"messages"`
}

type FileMessageNotification struct {
	From        int               `json:"from"`
	FileName    string            `json:"fileName"`
	MessageType types.MessageType `json:"messageType"`
}

type IncomingCall struct {
	CallId   string         `json:"callId"`
	CallerId int            `json:"callerId"`
	CallType types.CallType `json:"callType"`
}

type CallInitiated struct {
	CallId     string         `json:"callId"`
	ReceiverId int            `json:"receiverId"`
	CallType   types.CallType `json:"callType"`
}

// CallReply is the payload of call_answered and call_rejected.
type CallReply struct {
	CallId     string `json:"callId"`
	ReceiverId int    `json:"receiverId"`
}

type CallEnded struct {
	CallId  string `json:"callId,omitempty"`
	EndedBy int    `json:"endedBy"`
	Reason  string `json:"reason,omitempty"`
}

type CallHistory struct {
	ContactId int          `json:"contactId"`
	Calls     []types.Call `json:"calls"`
}

type Signal struct {
	From      int             `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func AuthFailed(reason string) *ServerMessage {
	return newServerMessage(EventAuthFailed, ReasonData{Reason: reason})
}

func CallFailed(reason string) *ServerMessage {
	return newServerMessage(EventCallFailed, ReasonData{Reason: reason})
}

func ErrInvalidMessage() *ServerMessage {
	return newServerMessage(EventError, ReasonData{Reason: reasonInvalidMessage})
}

func ErrUnknownEvent() *ServerMessage {
	return newServerMessage(EventError, ReasonData{Reason: reasonUnknownEvent})
}

func ErrInvalidData(err error) *ServerMessage {
	return newServerMessage(EventError, ReasonData{Reason: err.Error()})
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
