package server

import (
	"time"

	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/types"
)

const (
	callHistoryLimit     = 20
	callDurationLookback = 5 * time.Minute
)

type signalKind string

const (
	signalOffer     signalKind = EventWebrtcOffer
	signalAnswer    signalKind = EventWebrtcAnswer
	signalCandidate signalKind = EventWebrtcIceCandidate
)

func (cs *ChatServer) initiateCall(c *Client, data *InitiateCallData) {
	callerId, calleeId := c.user.Id, data.ReceiverId
	if callerId == calleeId {
		c.queueMessage(ErrInvalidData(errCallSelf))
		return
	}

	callee := cs.registry.resolve(calleeId)
	if callee == nil {
		c.queueMessage(CallFailed(reasonPeerOffline))
		return
	}

	before := cs.calls.size()
	sess := cs.calls.initiate(callerId, calleeId, data.CallType)
	cs.trackCalls(before)

	cs.log.Printf("call %s: %d calling %d (%s)", sess.id, callerId, calleeId, data.CallType)

	callee.queueMessage(newServerMessage(EventIncomingCall, IncomingCall{
		CallId:   sess.id,
		CallerId: callerId,
		CallType: data.CallType,
	}))
	c.queueMessage(newServerMessage(EventCallInitiated, CallInitiated{
		CallId:     sess.id,
		ReceiverId: calleeId,
		CallType:   data.CallType,
	}))
}

func (cs *ChatServer) answerCall(c *Client, data *CallReplyData) {
	calleeId, callerId := c.user.Id, data.CallerId

	sess, ok := cs.calls.answer(calleeId, callerId)
	if !ok {
		cs.log.Printf("user %d: no ringing call from %d to answer", calleeId, callerId)
		return
	}

	cs.notify(callerId, newServerMessage(EventCallAnswered, CallReply{
		CallId:     sess.id,
		ReceiverId: calleeId,
	}))

	cs.recordCall(callerId, calleeId, sess.callType, types.CallStatusAnswered, 0)
}

func (cs *ChatServer) rejectCall(c *Client, data *CallReplyData) {
	calleeId, callerId := c.user.Id, data.CallerId

	before := cs.calls.size()
	sess, ok := cs.calls.reject(calleeId, callerId)
	if !ok {
		cs.log.Printf("user %d: no ringing call from %d to reject", calleeId, callerId)
		return
	}
	cs.trackCalls(before)

	cs.notify(callerId, newServerMessage(EventCallRejected, CallReply{
		CallId:     sess.id,
		ReceiverId: calleeId,
	}))

	cs.recordCall(callerId, calleeId, sess.callType, types.CallStatusRejected, 0)
}

func (cs *ChatServer) endCall(c *Client, data *EndCallData) {
	userId, peerId := c.user.Id, data.OtherUserId

	before := cs.calls.size()
	sess, ok := cs.calls.end(userId, peerId)
	cs.trackCalls(before)

	cs.notify(peerId, newServerMessage(EventCallEnded, CallEnded{
		CallId:  sess.id,
		EndedBy: userId,
	}))

	if !ok {
		return
	}

	if sess.state == callStateAnswered {
		cs.updateCallDuration(userId, peerId, data.Duration)
		return
	}

	cs.recordMissedCall(userId, sess)
}

// dropCall ends whatever call userId is part of after their connection went
// away.
func (cs *ChatServer) dropCall(userId int) {
	before := cs.calls.size()
	sess, ok := cs.calls.drop(userId)
	if !ok {
		return
	}
	cs.trackCalls(before)

	cs.notify(sess.peerId, newServerMessage(EventCallEnded, CallEnded{
		CallId:  sess.id,
		EndedBy: userId,
		Reason:  reasonDisconnected,
	}))

	if sess.state == callStateAnswered {
		duration := int(time.Since(sess.answeredAt).Seconds())
		cs.updateCallDuration(userId, sess.peerId, duration)
		return
	}

	cs.recordMissedCall(userId, sess)
}

// relaySignal forwards a WebRTC payload to its target, tagged with the sender.
// It is dropped when the target is offline.
func (cs *ChatServer) relaySignal(c *Client, kind signalKind, data *SignalData) {
	target := cs.registry.resolve(data.To)
	if target == nil {
		return
	}

	sig := Signal{From: c.user.Id}
	switch kind {
	case signalOffer:
		sig.Offer = data.Offer
	case signalAnswer:
		sig.Answer = data.Answer
	case signalCandidate:
		sig.Candidate = data.Candidate
	}

	target.queueMessage(newServerMessage(string(kind), sig))
}

func (cs *ChatServer) callHistory(c *Client, data *ContactData) {
	ctx, cancel := cs.storeContext()
	defer cancel()

	calls, err := cs.db.GetCallHistory(ctx, c.user.Id, data.ContactId, callHistoryLimit)
	if err != nil {
		cs.log.Printf("user %d: get call history with %d: %v", c.user.Id, data.ContactId, err)
		return
	}

	history := make([]types.Call, 0, len(calls))
	for _, call := range calls {
		history = append(history, toCall(call))
	}

	c.queueMessage(newServerMessage(EventCallHistory, CallHistory{
		ContactId: data.ContactId,
		Calls:     history,
	}))
}

func (cs *ChatServer) recordMissedCall(userId int, sess callSession) {
	callerId, receiverId := userId, sess.peerId
	if !sess.caller {
		callerId, receiverId = sess.peerId, userId
	}

	cs.recordCall(callerId, receiverId, sess.callType, types.CallStatusMissed, 0)
}

func (cs *ChatServer) recordCall(callerId, receiverId int, callType types.CallType, status types.CallStatus, duration int) {
	ctx, cancel := cs.storeContext()
	defer cancel()

	_, err := cs.db.CreateCall(ctx, database.CreateCallParams{
		CallerId:   callerId,
		ReceiverId: receiverId,
		CallType:   string(callType),
		Status:     string(status),
		Duration:   duration,
		CreatedAt:  Now(),
	})
	if err != nil {
		cs.log.Printf("record %s call %d -> %d: %v", status, callerId, receiverId, err)
	}
}

func (cs *ChatServer) updateCallDuration(a, b, duration int) {
	ctx, cancel := cs.storeContext()
	defer cancel()

	err := cs.db.UpdateRecentCallDuration(ctx, database.UpdateCallDurationParams{
		UserA:    a,
		UserB:    b,
		Since:    Now().Add(-callDurationLookback),
		Duration: duration,
	})
	if err != nil {
		cs.log.Printf("update call duration %d <-> %d: %v", a, b, err)
	}
}

func toCall(c database.Call) types.Call {
	return types.Call{
		Id:             c.Id,
		CallerId:       c.CallerId,
		CallerName:     c.CallerName,
		CallerAvatar:   c.CallerAvatar,
		ReceiverId:     c.ReceiverId,
		ReceiverName:   c.ReceiverName,
		ReceiverAvatar: c.ReceiverAvatar,
		CallType:       types.CallType(c.CallType),
		Status:         types.CallStatus(c.Status),
		Duration:       c.Duration,
		Timestamp:      c.CreatedAt,
	}
}
