package server

import (
	"sort"
	"sync"
)

// ConversationIndex records, per user, the peers they have exchanged at least
// one message with. The relation is kept symmetric and only ever grows.
type ConversationIndex struct {
	mu    sync.RWMutex
	peers map[int]map[int]struct{}
}

func NewConversationIndex() *ConversationIndex {
	return &ConversationIndex{peers: make(map[int]map[int]struct{})}
}

func (ci *ConversationIndex) add(a, b int) {
	set, ok := ci.peers[a]
	if !ok {
		set = make(map[int]struct{})
		ci.peers[a] = set
	}
	set[b] = struct{}{}
}

// install merges a persisted peer list for userId into the index and mirrors
// each entry into the peer's own set. Users with no peers still get an entry.
func (ci *ConversationIndex) install(userId int, peers []int) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	if _, ok := ci.peers[userId]; !ok {
		ci.peers[userId] = make(map[int]struct{})
	}

	for _, p := range peers {
		if p == userId {
			continue
		}
		ci.add(userId, p)
		ci.add(p, userId)
	}
}

// link records a conversation between a and b in both directions. It is
// idempotent.
func (ci *ConversationIndex) link(a, b int) {
	if a == b {
		return
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.add(a, b)
	ci.add(b, a)
}

// peersOf returns the peers of userId in ascending order.
func (ci *ConversationIndex) peersOf(userId int) []int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	set := ci.peers[userId]
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids
}
