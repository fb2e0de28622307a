package server

// dispatch decodes msg into its event payload and runs the handler on the
// client's read goroutine.
func (cs *ChatServer) dispatch(c *Client, msg *ClientMessage) {
	switch msg.Event {
	case EventLogin:
		var data LoginData
		if c.decode(msg, &data) {
			cs.login(c, &data)
		}
		return
	case EventRegister:
		var data RegisterData
		if c.decode(msg, &data) {
			cs.register(c, &data)
		}
		return
	case EventAuthenticate:
		var data AuthenticateData
		if c.decode(msg, &data) {
			cs.authenticate(c, &data)
		}
		return
	}

	if !isKnownEvent(msg.Event) {
		c.queueMessage(ErrUnknownEvent())
		return
	}

	if !c.authenticated() {
		c.queueMessage(AuthFailed(reasonNotAuthenticated))
		return
	}

	switch msg.Event {
	case EventGetAllUsers:
		cs.getAllUsers(c)
	case EventGetContacts:
		cs.getContacts(c)
	case EventSearchUsers:
		var data SearchUsersData
		if c.decode(msg, &data) {
			cs.searchUsers(c, &data)
		}
	case EventGetConversation:
		var data ContactData
		if c.decode(msg, &data) {
			cs.getConversation(c, &data)
		}
	case EventSendMessage:
		var data SendMessageData
		if c.decode(msg, &data) {
			cs.sendMessage(c, &data)
		}
	case EventSendFileMessage:
		var data SendFileMessageData
		if c.decode(msg, &data) {
			cs.sendFileMessage(c, &data)
		}
	case EventDeleteMessage:
		var data DeleteMessageData
		if c.decode(msg, &data) {
			cs.deleteMessage(c, &data)
		}
	case EventInitiateCall:
		var data InitiateCallData
		if c.decode(msg, &data) {
			cs.initiateCall(c, &data)
		}
	case EventAnswerCall:
		var data CallReplyData
		if c.decode(msg, &data) {
			cs.answerCall(c, &data)
		}
	case EventRejectCall:
		var data CallReplyData
		if c.decode(msg, &data) {
			cs.rejectCall(c, &data)
		}
	case EventEndCall:
		var data EndCallData
		if c.decode(msg, &data) {
			cs.endCall(c, &data)
		}
	case EventWebrtcOffer, EventWebrtcAnswer, EventWebrtcIceCandidate:
		var data SignalData
		if c.decode(msg, &data) {
			cs.relaySignal(c, signalKind(msg.Event), &data)
		}
	case EventGetCallHistory:
		var data ContactData
		if c.decode(msg, &data) {
			cs.callHistory(c, &data)
		}
	}
}

func isKnownEvent(event string) bool {
	switch event {
	case EventLogin, EventRegister, EventAuthenticate,
		EventGetAllUsers, EventGetContacts, EventSearchUsers,
		EventGetConversation, EventSendMessage, EventSendFileMessage, EventDeleteMessage,
		EventInitiateCall, EventAnswerCall, EventRejectCall, EventEndCall,
		EventWebrtcOffer, EventWebrtcAnswer, EventWebrtcIceCandidate,
		EventGetCallHistory:
		return true
	}
	return false
}

// decode fills v from msg and replies with an error event when the payload is
// malformed.
func (c *Client) decode(msg *ClientMessage, v validator) bool {
	if err := msg.decode(v); err != nil {
		c.log.Printf("connection %q: invalid %s payload: %v", c.id, msg.Event, err)
		c.queueMessage(ErrInvalidData(err))
		return false
	}
	return true
}
