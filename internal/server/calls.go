package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-relay/internal/types"
)

type callState int

const (
	callStateCalling callState = iota + 1
	callStateRinging
	callStateAnswered
)

func (s callState) String() string {
	switch s {
	case callStateCalling:
		return "calling"
	case callStateRinging:
		return "ringing"
	case callStateAnswered:
		return "answered"
	}
	return "idle"
}

// callSession is one user's view of a call.
type callSession struct {
	id         string
	peerId     int
	callType   types.CallType
	state      callState
	caller     bool
	startedAt  time.Time
	answeredAt time.Time
}

// CallTable holds at most one call session per user. A session is only ever
// cleared together with its peer's, and only when the peer's session points
// back at the same user.
type CallTable struct {
	mu       sync.Mutex
	sessions map[int]*callSession
	now      func() time.Time
}

func NewCallTable() *CallTable {
	return &CallTable{
		sessions: make(map[int]*callSession),
		now:      time.Now,
	}
}

// initiate puts caller in CALLING and callee in RINGING, replacing any
// session either of them had.
func (ct *CallTable) initiate(callerId, calleeId int, callType types.CallType) callSession {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	id := uuid.NewString()
	now := ct.now()

	ct.sessions[callerId] = &callSession{
		id:        id,
		peerId:    calleeId,
		callType:  callType,
		state:     callStateCalling,
		caller:    true,
		startedAt: now,
	}
	ct.sessions[calleeId] = &callSession{
		id:        id,
		peerId:    callerId,
		callType:  callType,
		state:     callStateRinging,
		startedAt: now,
	}

	return *ct.sessions[callerId]
}

// pairedLocked returns both sides of the call between a and b, or false if
// either side is missing or points elsewhere.
func (ct *CallTable) pairedLocked(a, b int) (*callSession, *callSession, bool) {
	sa, ok := ct.sessions[a]
	if !ok || sa.peerId != b {
		return nil, nil, false
	}
	sb, ok := ct.sessions[b]
	if !ok || sb.peerId != a {
		return nil, nil, false
	}

	return sa, sb, true
}

// answer moves the call between callee and caller to ANSWERED. It fails unless
// callee is RINGING for caller and caller is CALLING for callee.
func (ct *CallTable) answer(calleeId, callerId int) (callSession, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	callee, caller, ok := ct.pairedLocked(calleeId, callerId)
	if !ok || callee.state != callStateRinging || caller.state != callStateCalling {
		return callSession{}, false
	}

	now := ct.now()
	callee.state, caller.state = callStateAnswered, callStateAnswered
	callee.answeredAt, caller.answeredAt = now, now

	return *callee, true
}

// reject clears a call callee is still being rung for.
func (ct *CallTable) reject(calleeId, callerId int) (callSession, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	callee, _, ok := ct.pairedLocked(calleeId, callerId)
	if !ok || callee.state != callStateRinging {
		return callSession{}, false
	}

	sess := *callee
	ct.clearPairLocked(calleeId, callerId)

	return sess, true
}

// end clears userId's session with peerId. It reports false when userId had
// no session with that peer.
func (ct *CallTable) end(userId, peerId int) (callSession, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	sess, ok := ct.sessions[userId]
	if !ok || sess.peerId != peerId {
		return callSession{}, false
	}

	s := *sess
	ct.clearPairLocked(userId, peerId)

	return s, true
}

// drop clears whatever session userId has, along with its peer's side.
func (ct *CallTable) drop(userId int) (callSession, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	sess, ok := ct.sessions[userId]
	if !ok {
		return callSession{}, false
	}

	s := *sess
	ct.clearPairLocked(userId, sess.peerId)

	return s, true
}

func (ct *CallTable) clearPairLocked(a, b int) {
	if s, ok := ct.sessions[a]; ok && s.peerId == b {
		delete(ct.sessions, a)
	}
	if s, ok := ct.sessions[b]; ok && s.peerId == a {
		delete(ct.sessions, b)
	}
}

func (ct *CallTable) get(userId int) (callSession, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	sess, ok := ct.sessions[userId]
	if !ok {
		return callSession{}, false
	}

	return *sess, true
}

func (ct *CallTable) size() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	return len(ct.sessions)
}
