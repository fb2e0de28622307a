package server

import (
	"encoding/json"
	"testing"

	"github.com/npezzotti/go-relay/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestClientMessageDecode(t *testing.T) {
	tcases := []struct {
		name    string
		raw     string
		target  validator
		wantErr bool
		check   func(t *testing.T, v validator)
	}{
		{
			name:   "send message defaults to text",
			raw:    `{"event":"send_message","data":{"text":"hi","receiverId":2}}`,
			target: &SendMessageData{},
			check: func(t *testing.T, v validator) {
				d := v.(*SendMessageData)
				assert.Equal(t, "hi", d.Text)
				assert.Equal(t, 2, d.ReceiverId)
				assert.Equal(t, types.MessageTypeText, d.MessageType)
			},
		},
		{
			name:    "send message without receiver",
			raw:     `{"event":"send_message","data":{"text":"hi"}}`,
			target:  &SendMessageData{},
			wantErr: true,
		},
		{
			name:    "send message with unknown type",
			raw:     `{"event":"send_message","data":{"text":"hi","receiverId":2,"messageType":"sticker"}}`,
			target:  &SendMessageData{},
			wantErr: true,
		},
		{
			name:    "receiver id of wrong type",
			raw:     `{"event":"send_message","data":{"text":"hi","receiverId":"two"}}`,
			target:  &SendMessageData{},
			wantErr: true,
		},
		{
			name:   "file message",
			raw:    `{"event":"send_file_message","data":{"receiverId":2,"messageType":"image","fileUrl":"/f/a.png","fileName":"a.png","fileSize":"12 KB"}}`,
			target: &SendFileMessageData{},
			check: func(t *testing.T, v validator) {
				d := v.(*SendFileMessageData)
				assert.Equal(t, types.MessageTypeImage, d.MessageType)
				assert.Equal(t, "a.png", d.FileName)
				assert.Equal(t, "12 KB", d.FileSize)
			},
		},
		{
			name:    "file message typed as text",
			raw:     `{"event":"send_file_message","data":{"receiverId":2,"messageType":"text","fileUrl":"/f/a"}}`,
			target:  &SendFileMessageData{},
			wantErr: true,
		},
		{
			name:    "file message without url",
			raw:     `{"event":"send_file_message","data":{"receiverId":2,"messageType":"file"}}`,
			target:  &SendFileMessageData{},
			wantErr: true,
		},
		{
			name:    "call with unknown type",
			raw:     `{"event":"initiate_call","data":{"receiverId":2,"callType":"hologram"}}`,
			target:  &InitiateCallData{},
			wantErr: true,
		},
		{
			name:    "end call with negative duration",
			raw:     `{"event":"end_call","data":{"otherUserId":2,"duration":-1}}`,
			target:  &EndCallData{},
			wantErr: true,
		},
		{
			name:    "answer without caller",
			raw:     `{"event":"answer_call","data":{}}`,
			target:  &CallReplyData{},
			wantErr: true,
		},
		{
			name:    "delete without message id",
			raw:     `{"event":"delete_message","data":{"contactId":2}}`,
			target:  &DeleteMessageData{},
			wantErr: true,
		},
		{
			name:   "signal keeps raw payload",
			raw:    `{"event":"webrtc_offer","data":{"to":3,"offer":{"type":"offer","sdp":"v=0"}}}`,
			target: &SignalData{},
			check: func(t *testing.T, v validator) {
				d := v.(*SignalData)
				assert.Equal(t, 3, d.To)
				assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(d.Offer))
			},
		},
		{
			name:   "missing data decodes as empty",
			raw:    `{"event":"login"}`,
			target: &LoginData{},
			check: func(t *testing.T, v validator) {
				assert.Equal(t, &LoginData{}, v)
			},
		},
		{
			name:    "contact id required",
			raw:     `{"event":"get_conversation","data":null}`,
			target:  &ContactData{},
			wantErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var msg ClientMessage
			if !assert.NoError(t, json.Unmarshal([]byte(tc.raw), &msg)) {
				return
			}

			err := msg.decode(tc.target)
			if tc.wantErr {
				assert.ErrorIs(t, err, errInvalidData, "expected invalid data error")
				return
			}

			assert.NoError(t, err)
			if tc.check != nil {
				tc.check(t, tc.target)
			}
		})
	}
}

func TestServerMessageConstructors(t *testing.T) {
	msg := AuthFailed(reasonUserExists)
	assert.Equal(t, EventAuthFailed, msg.Event)
	assert.Equal(t, ReasonData{Reason: "User already exists with this email"}, msg.Data)
	assert.False(t, msg.Timestamp.IsZero(), "expected timestamp to be set")

	msg = CallFailed(reasonPeerOffline)
	assert.Equal(t, EventCallFailed, msg.Event)
	assert.Equal(t, ReasonData{Reason: "peer offline"}, msg.Data)

	msg = ErrUnknownEvent()
	assert.Equal(t, EventError, msg.Event)
	assert.Equal(t, ReasonData{Reason: "unknown event"}, msg.Data)
}

func TestCallEndedOmitsEmptyReason(t *testing.T) {
	b, err := json.Marshal(CallEnded{EndedBy: 4})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"endedBy":4}`, string(b))

	b, err = json.Marshal(CallEnded{CallId: "c1", EndedBy: 4, Reason: reasonDisconnected})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"callId":"c1","endedBy":4,"reason":"disconnected"}`, string(b))
}
