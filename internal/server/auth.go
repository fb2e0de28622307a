package server

import (
	"database/sql"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/types"
)

func (cs *ChatServer) login(c *Client, data *LoginData) {
	email := strings.TrimSpace(data.Email)
	if email == "" || data.Password == "" {
		c.queueMessage(AuthFailed(reasonInvalidCredentials))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	user, err := cs.db.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(AuthFailed(reasonInvalidCredentials))
			return
		}
		cs.log.Printf("login: get user %q: %v", email, err)
		c.queueMessage(AuthFailed(reasonLoginFailed))
		return
	}

	if !cs.identity.VerifyPassword(user.PasswordHash, data.Password) {
		c.queueMessage(AuthFailed(reasonInvalidCredentials))
		return
	}

	token, err := cs.identity.IssueToken(user.Id)
	if err != nil {
		cs.log.Printf("login: issue token for user %d: %v", user.Id, err)
		c.queueMessage(AuthFailed(reasonLoginFailed))
		return
	}

	if user.Avatar == "" {
		user.Avatar = avatarFor(user.Name)
	}

	cs.completeAuth(c, user, token)
}

func (cs *ChatServer) register(c *Client, data *RegisterData) {
	name, email := strings.TrimSpace(data.Name), strings.TrimSpace(data.Email)
	if name == "" || email == "" || data.Password == "" {
		c.queueMessage(AuthFailed(reasonMissingFields))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	_, err := cs.db.GetUserByEmail(ctx, email)
	if err == nil {
		c.queueMessage(AuthFailed(reasonUserExists))
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		cs.log.Printf("register: get user %q: %v", email, err)
		c.queueMessage(AuthFailed(reasonRegisterFailed))
		return
	}

	hash, err := cs.identity.HashPassword(data.Password)
	if err != nil {
		cs.log.Printf("register: hash password: %v", err)
		c.queueMessage(AuthFailed(reasonRegisterFailed))
		return
	}

	user, err := cs.db.CreateUser(ctx, database.CreateUserParams{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Avatar:       avatarFor(name),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			c.queueMessage(AuthFailed(reasonUserExists))
			return
		}
		cs.log.Printf("register: create user %q: %v", email, err)
		c.queueMessage(AuthFailed(reasonRegisterFailed))
		return
	}

	token, err := cs.identity.IssueToken(user.Id)
	if err != nil {
		cs.log.Printf("register: issue token for user %d: %v", user.Id, err)
		c.queueMessage(AuthFailed(reasonRegisterFailed))
		return
	}

	cs.completeAuth(c, user, token)

	contact := cs.toContact(user)
	contact.LastMessage = noMessagesYet
	cs.broadcast(newServerMessage(EventNewUserAdded, contact), user.Id)
}

func (cs *ChatServer) authenticate(c *Client, data *AuthenticateData) {
	if data.Token == "" {
		c.queueMessage(AuthFailed(reasonNoToken))
		return
	}

	userId, err := cs.identity.VerifyToken(data.Token)
	if err != nil {
		cs.log.Printf("authenticate: %v", err)
		c.queueMessage(AuthFailed(reasonAuthFailed))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	user, err := cs.db.GetUserById(ctx, userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(AuthFailed(reasonUserNotFound))
			return
		}
		cs.log.Printf("authenticate: get user %d: %v", userId, err)
		c.queueMessage(AuthFailed(reasonAuthFailed))
		return
	}

	cs.completeAuth(c, user, data.Token)
}

// completeAuth registers the connection, loads the user's conversations and
// confirms the session to the client.
func (cs *ChatServer) completeAuth(c *Client, user database.User, token string) {
	cs.registerConnection(c, types.User{
		Id:     user.Id,
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
	})

	cs.hydrateConversations(user.Id)

	c.queueMessage(newServerMessage(EventAuthSuccess, types.AuthenticatedUser{
		Id:     user.Id,
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
		Token:  token,
	}))
}

func (cs *ChatServer) hydrateConversations(userId int) {
	ctx, cancel := cs.storeContext()
	defer cancel()

	peers, err := cs.db.ListConversationPeers(ctx, userId)
	if err != nil {
		cs.log.Printf("user %d: load conversations: %v", userId, err)
		peers = nil
	}

	cs.conversations.install(userId, peers)
}

// avatarFor returns the upper-cased first letter of name.
func avatarFor(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}
