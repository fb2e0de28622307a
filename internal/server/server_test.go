package server

import (
	"context"
	"testing"
	"time"

	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/identity"
	"github.com/npezzotti/go-relay/internal/stats"
	"github.com/npezzotti/go-relay/internal/testutil"
	"github.com/npezzotti/go-relay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSigningKey = []byte("test_signing_key")

func newTestIdentity() *identity.JwtProvider {
	return identity.NewJwtProvider(testSigningKey, time.Hour).WithCost(bcrypt.MinCost)
}

// newTestChatServer creates a ChatServer whose stats calls are all allowed.
func newTestChatServer(t *testing.T, db database.RelayRepository) *ChatServer {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	cs, err := NewChatServer(testutil.TestLogger(t), db, newTestIdentity(), su, 0)
	require.NoError(t, err, "failed to create test ChatServer")

	return cs
}

// newTestClient returns a client without a socket. A non-zero userId is bound
// in the registry directly, bypassing the store.
func newTestClient(t *testing.T, cs *ChatServer, userId int) *Client {
	c := NewClient(nil, cs, testutil.TestLogger(t))
	if userId != 0 {
		c.user = types.User{Id: userId, Name: "user", Online: true}
		cs.registry.register(userId, c)
	}

	return c
}

// nextMessage pops the next queued message for c.
func nextMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()

	select {
	case msg := <-c.send:
		require.NotNil(t, msg, "expected a message, got the close marker")
		return msg
	default:
		t.Fatalf("expected a message for connection %q, none queued", c.id)
	}

	return nil
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()

	select {
	case msg := <-c.send:
		t.Errorf("expected no message for connection %q, got %+v", c.id, msg)
	default:
	}
}

// drain discards everything queued for c.
func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestNewChatServer(t *testing.T) {
	db := &database.MockRelayRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", stats.NumActiveClients).Return().Once()
	su.On("RegisterMetric", stats.NumOnlineUsers).Return().Once()
	su.On("RegisterMetric", stats.NumActiveCalls).Return().Once()
	su.On("RegisterMetric", stats.NumMessagesRelayed).Return().Once()

	logger := testutil.TestLogger(t)
	idp := newTestIdentity()
	cs, err := NewChatServer(logger, db, idp, su, 20)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.Equal(t, logger, cs.log, "expected logger to be set")
	assert.Equal(t, db, cs.db, "expected database repository to be set")
	assert.Equal(t, idp, cs.identity, "expected identity provider to be set")
	assert.Equal(t, 20, cs.eventsPerSecond, "expected event rate to be set")
	assert.NotNil(t, cs.registry, "expected registry to be initialized")
	assert.NotNil(t, cs.conversations, "expected conversation index to be initialized")
	assert.NotNil(t, cs.calls, "expected call table to be initialized")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
}

func TestChatServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRelayRepository{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case req := <-cs.stop:
				assert.NotNil(t, req.done, "expected done channel in stop request")
				close(req.done)
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRelayRepository{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case <-cs.stop:
				// do not close req.done to simulate a hang
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context deadline exceeded error, got %v", err)
	})
}

func TestChatServerShutdown_Integration(t *testing.T) {
	t.Run("successful shutdown with no clients", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRelayRepository{})
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")

		select {
		case <-cs.done:
		case <-time.After(time.Second):
			t.Error("expected Run to exit")
		}
	})

	t.Run("shutdown stops connected clients", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRelayRepository{})
		go cs.Run()

		c := newTestClient(t, cs, 0)
		cs.RegisterChan <- c

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")

		select {
		case <-c.stop:
		default:
			t.Error("expected client stop channel to be closed")
		}
	})

	t.Run("shutdown waits for connection cleanup", func(t *testing.T) {
		token, err := newTestIdentity().IssueToken(1)
		require.NoError(t, err)

		db := &database.MockRelayRepository{}
		db.On("GetUserById", 1).Return(database.User{Id: 1, Name: "bob", Avatar: "B"}, nil).Once()
		db.On("UpdatePresence", mock.MatchedBy(func(p database.UpdatePresenceParams) bool {
			return p.UserId == 1 && p.Online
		})).Return(nil).Once()
		db.On("ListConversationPeers", 1).Return([]int{}, nil).Once()
		db.On("UpdatePresence", mock.MatchedBy(func(p database.UpdatePresenceParams) bool {
			return p.UserId == 1 && !p.Online
		})).Return(nil).Once()

		cs := newTestChatServer(t, db)
		go cs.Run()

		conn := dialTestServer(t, cs)
		require.NoError(t, conn.WriteJSON(map[string]any{
			"event": EventAuthenticate,
			"data":  map[string]string{"token": token},
		}))
		require.Equal(t, EventAuthSuccess, readFrame(t, conn).Event)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		require.NoError(t, cs.Shutdown(ctx))

		// Offline presence must be stored before Shutdown returns.
		db.AssertExpectations(t)
		assert.Zero(t, cs.registry.count(), "expected the user to be unregistered")
	})

	t.Run("shutdown after run exited is a no-op", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRelayRepository{})
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		require.NoError(t, cs.Shutdown(ctx))
		assert.NoError(t, cs.Shutdown(ctx), "expected second shutdown to return immediately")
	})
}

func TestChatServerClientTracking(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", stats.NumActiveClients).Return().Once()
	su.On("Decr", stats.NumActiveClients).Return().Once()
	defer su.AssertExpectations(t)

	cs, err := NewChatServer(testutil.TestLogger(t), &database.MockRelayRepository{}, newTestIdentity(), su, 0)
	require.NoError(t, err)

	c := &Client{id: "abc"}
	cs.addClient(c)
	cs.addClient(c)
	assert.Len(t, cs.clients, 1, "expected client to be tracked once")

	cs.removeClient(c)
	cs.removeClient(c)
	assert.Empty(t, cs.clients, "expected client to be removed")
}

func TestChatServerTrackCalls(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", stats.NumActiveCalls).Return().Twice()
	su.On("Decr", stats.NumActiveCalls).Return().Twice()
	defer su.AssertExpectations(t)

	cs, err := NewChatServer(testutil.TestLogger(t), &database.MockRelayRepository{}, newTestIdentity(), su, 0)
	require.NoError(t, err)

	before := cs.calls.size()
	cs.calls.initiate(1, 2, types.CallTypeAudio)
	cs.trackCalls(before)

	before = cs.calls.size()
	cs.calls.drop(1)
	cs.trackCalls(before)
}

func TestOnlineUsers(t *testing.T) {
	cs := newTestChatServer(t, &database.MockRelayRepository{})
	newTestClient(t, cs, 3)
	newTestClient(t, cs, 1)

	assert.Equal(t, []int{1, 3}, cs.OnlineUsers())
}
