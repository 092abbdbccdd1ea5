package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type messageType string

const (
	messageTypeAuth         messageType = "auth"
	messageTypeUserOnline   messageType = "user-online"
	messageTypeCallUser     messageType = "call-user"
	messageTypeAcceptCall   messageType = "accept-call"
	messageTypeRejectCall   messageType = "reject-call"
	messageTypeEndCall      messageType = "end-call"
	messageTypeICECandidate messageType = "ice-candidate"
	messageTypeSendMessage  messageType = "send-message"
	messageTypeTyping       messageType = "typing"
)

const (
	messageTypeReady          = "ready"
	messageTypeUserStatus     = "user-status"
	messageTypeIncomingCall   = "incoming-call"
	messageTypeCallAccepted   = "call-accepted"
	messageTypeCallRejected   = "call-rejected"
	messageTypeCallEnded      = "call-ended"
	messageTypeReceiveMessage = "receive-message"
	messageTypeUserTyping     = "user-typing"
)

// clientMessage is the tagged union over every frame a client may send.
// Signal and Candidate are opaque: the relay forwards them byte-for-byte and
// never inspects SDP or ICE internals.
type clientMessage struct {
	Type messageType `json:"type"`

	UserID    string          `json:"userId,omitempty"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	Signal    json.RawMessage `json:"signal,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	ConversationID string `json:"conversationId,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	Content        string `json:"content,omitempty"`
	IsTyping       *bool  `json:"isTyping,omitempty"`

	APIKey string `json:"apiKey,omitempty"`
	Token  string `json:"token,omitempty"`
}

func parseClientMessage(data []byte) (clientMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg clientMessage
	if err := dec.Decode(&msg); err != nil {
		return clientMessage{}, err
	}
	if err := msg.validate(); err != nil {
		return clientMessage{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return clientMessage{}, fmt.Errorf("unexpected trailing data")
	}
	return msg, nil
}

func (m clientMessage) validate() error {
	switch m.Type {
	case messageTypeAuth:
		if m.APIKey == "" && m.Token == "" {
			return fmt.Errorf("auth message missing apiKey/token")
		}
	case messageTypeUserOnline:
		if m.UserID == "" {
			return fmt.Errorf("user-online message missing userId")
		}
	case messageTypeCallUser:
		if m.To == "" {
			return fmt.Errorf("call-user message missing to")
		}
		if m.From == "" {
			return fmt.Errorf("call-user message missing from")
		}
		if len(m.Signal) == 0 {
			return fmt.Errorf("call-user message missing signal")
		}
	case messageTypeAcceptCall:
		if m.To == "" {
			return fmt.Errorf("accept-call message missing to")
		}
		if len(m.Signal) == 0 {
			return fmt.Errorf("accept-call message missing signal")
		}
	case messageTypeRejectCall:
		if m.To == "" {
			return fmt.Errorf("reject-call message missing to")
		}
	case messageTypeEndCall:
		if m.To == "" {
			return fmt.Errorf("end-call message missing to")
		}
	case messageTypeICECandidate:
		if m.To == "" {
			return fmt.Errorf("ice-candidate message missing to")
		}
		if len(m.Candidate) == 0 {
			return fmt.Errorf("ice-candidate message missing candidate")
		}
	case messageTypeSendMessage:
		if m.RecipientID == "" {
			return fmt.Errorf("send-message message missing recipientId")
		}
		if m.SenderID == "" {
			return fmt.Errorf("send-message message missing senderId")
		}
		if m.Content == "" {
			return fmt.Errorf("send-message message missing content")
		}
	case messageTypeTyping:
		if m.RecipientID == "" {
			return fmt.Errorf("typing message missing recipientId")
		}
		if m.UserID == "" {
			return fmt.Errorf("typing message missing userId")
		}
		if m.IsTyping == nil {
			return fmt.Errorf("typing message missing isTyping")
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

// serverMessage covers every frame the relay sends to a client.
type serverMessage struct {
	Type string `json:"type"`

	ConnID string `json:"connId,omitempty"`

	UserID string `json:"userId,omitempty"`
	Status string `json:"status,omitempty"`

	From      string          `json:"from,omitempty"`
	Signal    json.RawMessage `json:"signal,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	ConversationID string `json:"conversationId,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	Content        string `json:"content,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	IsTyping       *bool  `json:"isTyping,omitempty"`
}

func encodeFrame(msg serverMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func readyFrame(connID string) ([]byte, error) {
	return encodeFrame(serverMessage{Type: messageTypeReady, ConnID: connID})
}

func userStatusFrame(userID string, online bool) ([]byte, error) {
	status := "offline"
	if online {
		status = "online"
	}
	return encodeFrame(serverMessage{Type: messageTypeUserStatus, UserID: userID, Status: status})
}

func incomingCallFrame(from string, signal json.RawMessage) ([]byte, error) {
	return encodeFrame(serverMessage{Type: messageTypeIncomingCall, From: from, Signal: signal})
}

func callAcceptedFrame(signal json.RawMessage) ([]byte, error) {
	return encodeFrame(serverMessage{Type: messageTypeCallAccepted, Signal: signal})
}

func callRejectedFrame() ([]byte, error) {
	return encodeFrame(serverMessage{Type: messageTypeCallRejected})
}

func callEndedFrame() ([]byte, error) {
	return encodeFrame(serverMessage{Type: messageTypeCallEnded})
}

func iceCandidateFrame(candidate json.RawMessage) ([]byte, error) {
	return encodeFrame(serverMessage{Type: string(messageTypeICECandidate), Candidate: candidate})
}

func receiveMessageFrame(conversationID, senderID, content, timestamp string) ([]byte, error) {
	return encodeFrame(serverMessage{
		Type:           messageTypeReceiveMessage,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      timestamp,
	})
}

func userTypingFrame(userID string, isTyping bool) ([]byte, error) {
	return encodeFrame(serverMessage{Type: messageTypeUserTyping, UserID: userID, IsTyping: &isTyping})
}
