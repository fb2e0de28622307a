package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/identity"
	"github.com/npezzotti/go-relay/internal/stats"
)

// storeTimeout bounds store calls made on behalf of a connection. The context
// is not derived from the connection, so a disconnect never aborts a write.
const storeTimeout = 10 * time.Second

type ChatServer struct {
	log             *log.Logger
	db              database.RelayRepository
	identity        identity.Provider
	stats           stats.StatsProvider
	registry        *Registry
	conversations   *ConversationIndex
	calls           *CallTable
	pairLocks       *pairLocks
	eventsPerSecond int
	clients         map[*Client]struct{}
	clientsLock     sync.Mutex
	pumps           sync.WaitGroup
	RegisterChan    chan *Client
	deRegisterChan  chan *Client
	stop            chan stopReq
	done            chan struct{}
}

type stopReq struct {
	done chan struct{}
}

func NewChatServer(logger *log.Logger, db database.RelayRepository, idp identity.Provider, su stats.StatsProvider, eventsPerSecond int) (*ChatServer, error) {
	su.RegisterMetric(stats.NumActiveClients)
	su.RegisterMetric(stats.NumOnlineUsers)
	su.RegisterMetric(stats.NumActiveCalls)
	su.RegisterMetric(stats.NumMessagesRelayed)

	return &ChatServer{
		log:             logger,
		db:              db,
		identity:        idp,
		stats:           su,
		registry:        NewRegistry(),
		conversations:   NewConversationIndex(),
		calls:           NewCallTable(),
		pairLocks:       newPairLocks(),
		eventsPerSecond: eventsPerSecond,
		clients:         make(map[*Client]struct{}),
		RegisterChan:    make(chan *Client),
		deRegisterChan:  make(chan *Client),
		stop:            make(chan stopReq),
		done:            make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	defer close(cs.done)

	for {
		select {
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection %q", client.id)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection %q", client.id)
			cs.removeClient(client)
		case req := <-cs.stop:
			cs.log.Println("closing client connections")
			cs.clientsLock.Lock()
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clientsLock.Unlock()

			close(req.done)
			return
		}
	}
}

// Connect hands a new connection to the server and starts its pumps.
func (cs *ChatServer) Connect(c *Client) bool {
	cs.pumps.Add(2)
	select {
	case cs.RegisterChan <- c:
	case <-cs.done:
		cs.pumps.Add(-2)
		return false
	}

	go func() {
		defer cs.pumps.Done()
		c.Write()
	}()
	go func() {
		defer cs.pumps.Done()
		c.Read()
	}()

	return true
}

func (cs *ChatServer) disconnect(c *Client) {
	cs.unregisterConnection(c)

	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; ok {
		return
	}
	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.NumActiveClients)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	cs.stats.Decr(stats.NumActiveClients)
}

// OnlineUsers returns the ids of every user with a live connection.
func (cs *ChatServer) OnlineUsers() []int {
	return cs.registry.onlineUsers()
}

func (cs *ChatServer) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// trackCalls adjusts the active call gauge by the change in call table size.
func (cs *ChatServer) trackCalls(before int) {
	after := cs.calls.size()
	for ; before < after; before++ {
		cs.stats.Incr(stats.NumActiveCalls)
	}
	for ; before > after; before-- {
		cs.stats.Decr(stats.NumActiveCalls)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-cs.done:
		return cs.waitPumps(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return cs.waitPumps(ctx)
}

// waitPumps blocks until every connection has finished its cleanup, so no
// store or stats call outlives Shutdown.
func (cs *ChatServer) waitPumps(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		cs.pumps.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
