package server

import (
	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/stats"
	"github.com/npezzotti/go-relay/internal/types"
)

// registerConnection binds c to user, evicting any connection the user
// already had, and announces the user as online.
func (cs *ChatServer) registerConnection(c *Client, user types.User) {
	if c.authenticated() && c.user.Id != user.Id {
		cs.unregisterConnection(c)
	}

	c.user = user
	c.user.Online = true

	prev, bound := cs.registry.register(user.Id, c)
	switch {
	case prev != nil:
		cs.log.Printf("user %d: replacing connection %q with %q", user.Id, prev.id, c.id)
		prev.evict()
	case bound:
		cs.stats.Incr(stats.NumOnlineUsers)
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	if err := cs.db.UpdatePresence(ctx, database.UpdatePresenceParams{
		UserId:   user.Id,
		Online:   true,
		LastSeen: Now(),
		Avatar:   user.Avatar,
	}); err != nil {
		cs.log.Printf("user %d: mark online: %v", user.Id, err)
	}

	if bound {
		cs.broadcastPresence(user.Id, true)
	}
}

// unregisterConnection releases the binding held by c, if it still holds one,
// and tears down the user's call. A connection that was replaced leaves the
// user's presence untouched.
func (cs *ChatServer) unregisterConnection(c *Client) bool {
	if !c.authenticated() {
		return false
	}

	userId := c.user.Id
	if !cs.registry.unregister(userId, c) {
		return false
	}
	cs.stats.Decr(stats.NumOnlineUsers)

	cs.dropCall(userId)

	ctx, cancel := cs.storeContext()
	defer cancel()

	if err := cs.db.UpdatePresence(ctx, database.UpdatePresenceParams{
		UserId:   userId,
		Online:   false,
		LastSeen: Now(),
	}); err != nil {
		cs.log.Printf("user %d: mark offline: %v", userId, err)
	}

	cs.broadcastPresence(userId, false)

	return true
}

func (cs *ChatServer) broadcastPresence(userId int, online bool) {
	event := EventUserOffline
	if online {
		event = EventUserOnline
	}

	cs.broadcast(newServerMessage(event, UserPresence{UserId: userId}), userId)
}

// broadcast queues msg on every registered connection except skip's.
func (cs *ChatServer) broadcast(msg *ServerMessage, skip int) {
	for _, c := range cs.registry.snapshot(skip) {
		c.queueMessage(msg)
	}
}

// notify queues msg for userId if they are online.
func (cs *ChatServer) notify(userId int, msg *ServerMessage) bool {
	c := cs.registry.resolve(userId)
	if c == nil {
		return false
	}

	return c.queueMessage(msg)
}
