package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/stats"
	"github.com/npezzotti/go-relay/internal/types"
)

const noMessagesYet = "No messages yet"

var (
	errMessageSelf = fmt.Errorf("%w: cannot message yourself", errInvalidData)
	errCallSelf    = fmt.Errorf("%w: cannot call yourself", errInvalidData)
)

type outgoingMessage struct {
	receiverId  int
	text        string
	messageType types.MessageType
	fileUrl     string
	fileName    string
	fileSize    string
}

func (cs *ChatServer) sendMessage(c *Client, data *SendMessageData) {
	if strings.TrimSpace(data.Text) == "" {
		return
	}

	cs.relayMessage(c, outgoingMessage{
		receiverId:  data.ReceiverId,
		text:        strings.TrimSpace(data.Text),
		messageType: data.MessageType,
		fileUrl:     data.FileUrl,
		fileName:    data.FileName,
		fileSize:    data.FileSize,
	})
}

func (cs *ChatServer) sendFileMessage(c *Client, data *SendFileMessageData) {
	cs.relayMessage(c, outgoingMessage{
		receiverId:  data.ReceiverId,
		text:        fileCaption(data.MessageType, data.FileName),
		messageType: data.MessageType,
		fileUrl:     data.FileUrl,
		fileName:    data.FileName,
		fileSize:    data.FileSize,
	})
}

func fileCaption(t types.MessageType, fileName string) string {
	switch t {
	case types.MessageTypeImage:
		return "📷 Photo"
	case types.MessageTypeVideo:
		return "🎥 Video"
	default:
		return "📄 " + fileName
	}
}

// relayMessage persists a message and delivers it to both ends. Writes for
// the same pair are serialized so delivery order follows sequence order.
func (cs *ChatServer) relayMessage(c *Client, out outgoingMessage) {
	senderId, receiverId := c.user.Id, out.receiverId
	if senderId == receiverId {
		cs.log.Printf("user %d: dropping message to self", senderId)
		c.queueMessage(ErrInvalidData(errMessageSelf))
		return
	}

	unlock := cs.pairLocks.lock(senderId, receiverId)
	defer unlock()

	cs.conversations.link(senderId, receiverId)

	ctx, cancel := cs.storeContext()
	defer cancel()

	msg, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		SenderId:    senderId,
		ReceiverId:  receiverId,
		Text:        out.text,
		MessageType: string(out.messageType),
		FileUrl:     out.fileUrl,
		FileName:    out.fileName,
		FileSize:    out.fileSize,
		CreatedAt:   Now(),
	})
	if err != nil {
		cs.log.Printf("user %d: save message to %d: %v", senderId, receiverId, err)
		return
	}

	c.queueMessage(newServerMessage(EventNewMessage, toMessage(msg, senderId)))

	if receiver := cs.registry.resolve(receiverId); receiver != nil {
		receiver.queueMessage(newServerMessage(EventNewMessage, toMessage(msg, receiverId)))

		if out.messageType != types.MessageTypeText {
			receiver.queueMessage(newServerMessage(EventFileMessageNotification, FileMessageNotification{
				From:        senderId,
				FileName:    out.fileName,
				MessageType: out.messageType,
			}))
		}
	}

	cs.stats.Incr(stats.NumMessagesRelayed)
}

func (cs *ChatServer) deleteMessage(c *Client, data *DeleteMessageData) {
	userId := c.user.Id

	if data.ContactId > 0 {
		unlock := cs.pairLocks.lock(userId, data.ContactId)
		defer unlock()
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	if err := cs.db.DeleteMessage(ctx, data.MessageId); err != nil {
		cs.log.Printf("user %d: delete message %d: %v", userId, data.MessageId, err)
		return
	}

	deleted := newServerMessage(EventMessageDeleted, MessageDeleted{MessageId: data.MessageId})
	if data.ContactId > 0 && data.ContactId != userId {
		cs.notify(data.ContactId, deleted)
	}
	c.queueMessage(deleted)
}

func (cs *ChatServer) getConversation(c *Client, data *ContactData) {
	userId := c.user.Id

	ctx, cancel := cs.storeContext()
	defer cancel()

	msgs, err := cs.db.GetMessages(ctx, userId, data.ContactId)
	if err != nil {
		cs.log.Printf("user %d: get conversation with %d: %v", userId, data.ContactId, err)
		return
	}

	history := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, toMessage(m, userId))
	}

	c.queueMessage(newServerMessage(EventConversationHistory, ConversationHistory{
		ContactId: data.ContactId,
		Messages:  history,
	}))
}

// getContacts lists every user the caller has a conversation with, with a
// preview of the latest message.
func (cs *ChatServer) getContacts(c *Client) {
	userId := c.user.Id

	ctx, cancel := cs.storeContext()
	defer cancel()

	users, err := cs.db.GetUsersByIds(ctx, cs.conversations.peersOf(userId))
	if err != nil {
		cs.log.Printf("user %d: get contacts: %v", userId, err)
		return
	}

	contacts := make([]types.Contact, 0, len(users))
	for _, u := range users {
		contact := cs.toContact(u)
		cs.withLastMessage(ctx, userId, &contact)
		contacts = append(contacts, contact)
	}

	c.queueMessage(newServerMessage(EventContactsList, contacts))
}

// withLastMessage fills the preview of the latest message between userId and
// the contact. It reports whether such a message exists.
func (cs *ChatServer) withLastMessage(ctx context.Context, userId int, contact *types.Contact) bool {
	contact.LastMessage = noMessagesYet

	last, err := cs.db.GetLastMessage(ctx, userId, contact.Id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			cs.log.Printf("user %d: last message with %d: %v", userId, contact.Id, err)
		}
		return false
	}

	contact.LastMessage = last.Text
	contact.LastTime = formatTime(last.CreatedAt)

	return true
}

func (cs *ChatServer) getAllUsers(c *Client) {
	userId := c.user.Id

	ctx, cancel := cs.storeContext()
	defer cancel()

	users, err := cs.db.ListUsersExcept(ctx, userId)
	if err != nil {
		cs.log.Printf("user %d: list users: %v", userId, err)
		return
	}

	contacts := make([]types.Contact, 0, len(users))
	for _, u := range users {
		contact := cs.toContact(u)
		hasConversation := cs.withLastMessage(ctx, userId, &contact)
		contact.HasConversation = &hasConversation
		contacts = append(contacts, contact)
	}

	c.queueMessage(newServerMessage(EventAllUsersList, contacts))
}

func (cs *ChatServer) searchUsers(c *Client, data *SearchUsersData) {
	term := strings.TrimSpace(data.SearchTerm)
	if term == "" {
		return
	}

	userId := c.user.Id

	ctx, cancel := cs.storeContext()
	defer cancel()

	users, err := cs.db.SearchUsersByName(ctx, userId, term)
	if err != nil {
		cs.log.Printf("user %d: search users: %v", userId, err)
		return
	}

	contacts := make([]types.Contact, 0, len(users))
	for _, u := range users {
		contact := cs.toContact(u)
		contact.IsSearchResult = true
		contacts = append(contacts, contact)
	}

	c.queueMessage(newServerMessage(EventSearchUsersResults, contacts))
}

// toContact builds a contact entry. Online state comes from the registry, not
// the stored flag.
func (cs *ChatServer) toContact(u database.User) types.Contact {
	return types.Contact{
		Id:       u.Id,
		Name:     u.Name,
		Avatar:   u.Avatar,
		Online:   cs.registry.isOnline(u.Id),
		LastSeen: u.LastSeen,
	}
}

// toMessage tags m as sent or received from viewerId's side.
func toMessage(m database.Message, viewerId int) types.Message {
	direction := types.DirectionReceived
	if m.SenderId == viewerId {
		direction = types.DirectionSent
	}

	return types.Message{
		Id:          m.Id,
		SeqId:       m.SeqId,
		Text:        m.Text,
		SenderId:    m.SenderId,
		ReceiverId:  m.ReceiverId,
		Timestamp:   m.CreatedAt,
		MessageType: types.MessageType(m.MessageType),
		FileUrl:     m.FileUrl,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		Read:        m.Read,
		Type:        direction,
	}
}

// formatTime renders hour and zero-padded minute, e.g. 9:05.
func formatTime(t time.Time) string {
	return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
}
