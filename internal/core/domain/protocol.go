package domain

import (
	"encoding/json"
	"fmt"
)

// Event names on the realtime channel.
const (
	EventJoinRoom              = "join-room"
	EventLeaveRoom             = "leave-room"
	EventOffer                 = "webrtc:offer"
	EventAnswer                = "webrtc:answer"
	EventICE                   = "webrtc:ice"
	EventEnd                   = "webrtc:end"
	EventTypingStart           = "typing:start"
	EventTypingStop            = "typing:stop"
	EventOnlineUsers           = "getOnlineUsers"
	EventPeerJoined            = "peer:joined"
	EventNewMessage            = "newMessage"
	EventGroupMessage          = "groupMessage"
	EventGroupDeleted          = "groupDeleted"
	EventGroupMessageDeleted   = "groupMessageDeleted"
	EventPrivateMessageDeleted = "privateMessageDeleted"
	EventError                 = "error"
)

// Error codes carried by ErrorEvent.
const (
	CodeBadFrame    = "bad_frame"
	CodeCallFull    = "call_full"
	CodeCallEnded   = "call_ended"
	CodeUnavailable = "unavailable"
)

// Frame is the JSON envelope of every websocket text message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is the closed set of client to server events.
type Inbound interface {
	Name() string
	Validate() error
	inbound()
}

// Outbound is the closed set of server to client events.
type Outbound interface {
	Name() string
	outbound()
}

// JoinRoom subscribes the connection to a room. Kind is resolved server side
// before the event reaches the relay.
type JoinRoom struct {
	RoomID string   `json:"roomId"`
	Kind   RoomKind `json:"-"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// Offer, Answer and ICECandidate carry opaque negotiation payloads that are
// forwarded byte for byte.
type Offer struct {
	RoomID string          `json:"roomId"`
	Offer  json.RawMessage `json:"offer,omitempty"`
}

type Answer struct {
	RoomID string          `json:"roomId"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

type ICECandidate struct {
	RoomID    string          `json:"roomId"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type EndCall struct {
	RoomID string `json:"roomId"`
}

type TypingStart struct {
	To string `json:"to"`
}

type TypingStop struct {
	To string `json:"to"`
}

// OnlineUsers is the full presence snapshot.
type OnlineUsers []string

type PeerJoined struct {
	RoomID string `json:"roomId,omitempty"`
}

type TypingStarted struct {
	From string `json:"from"`
}

type TypingStopped struct {
	From string `json:"from"`
}

// NewMessage and GroupMessage marshal as the bare persisted record.
type NewMessage struct{ Message }

type GroupMessage struct{ Message }

type GroupDeleted struct {
	GroupID string `json:"groupId"`
}

type GroupMessageDeleted struct {
	MessageID string `json:"messageId"`
	GroupID   string `json:"groupId"`
}

type PrivateMessageDeleted struct {
	MessageID string `json:"messageId"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (JoinRoom) Name() string     { return EventJoinRoom }
func (LeaveRoom) Name() string    { return EventLeaveRoom }
func (Offer) Name() string        { return EventOffer }
func (Answer) Name() string       { return EventAnswer }
func (ICECandidate) Name() string { return EventICE }
func (EndCall) Name() string      { return EventEnd }
func (TypingStart) Name() string  { return EventTypingStart }
func (TypingStop) Name() string   { return EventTypingStop }

func (OnlineUsers) Name() string           { return EventOnlineUsers }
func (PeerJoined) Name() string            { return EventPeerJoined }
func (TypingStarted) Name() string         { return EventTypingStart }
func (TypingStopped) Name() string         { return EventTypingStop }
func (NewMessage) Name() string            { return EventNewMessage }
func (GroupMessage) Name() string          { return EventGroupMessage }
func (GroupDeleted) Name() string          { return EventGroupDeleted }
func (GroupMessageDeleted) Name() string   { return EventGroupMessageDeleted }
func (PrivateMessageDeleted) Name() string { return EventPrivateMessageDeleted }
func (ErrorEvent) Name() string            { return EventError }

func (e JoinRoom) Validate() error     { return requireField("roomId", e.RoomID) }
func (e LeaveRoom) Validate() error    { return requireField("roomId", e.RoomID) }
func (e Offer) Validate() error        { return requireField("roomId", e.RoomID) }
func (e Answer) Validate() error       { return requireField("roomId", e.RoomID) }
func (e ICECandidate) Validate() error { return requireField("roomId", e.RoomID) }
func (e EndCall) Validate() error      { return requireField("roomId", e.RoomID) }
func (e TypingStart) Validate() error  { return requireField("to", e.To) }
func (e TypingStop) Validate() error   { return requireField("to", e.To) }

func (JoinRoom) inbound()     {}
func (LeaveRoom) inbound()    {}
func (Offer) inbound()        {}
func (Answer) inbound()       {}
func (ICECandidate) inbound() {}
func (EndCall) inbound()      {}
func (TypingStart) inbound()  {}
func (TypingStop) inbound()   {}

// Signaling events travel in both directions unchanged.
func (Offer) outbound()        {}
func (Answer) outbound()       {}
func (ICECandidate) outbound() {}
func (EndCall) outbound()      {}

func (OnlineUsers) outbound()           {}
func (PeerJoined) outbound()            {}
func (TypingStarted) outbound()         {}
func (TypingStopped) outbound()         {}
func (NewMessage) outbound()            {}
func (GroupMessage) outbound()          {}
func (GroupDeleted) outbound()          {}
func (GroupMessageDeleted) outbound()   {}
func (PrivateMessageDeleted) outbound() {}
func (ErrorEvent) outbound()            {}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrMalformedEvent, name)
	}
	return nil
}

// DecodeFrame parses one websocket message into its inbound variant and
// validates its shape.
func DecodeFrame(raw []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	var (
		in  Inbound
		err error
	)
	switch f.Event {
	case EventJoinRoom:
		in, err = decodeAs[JoinRoom](f.Data)
	case EventLeaveRoom:
		in, err = decodeAs[LeaveRoom](f.Data)
	case EventOffer:
		in, err = decodeAs[Offer](f.Data)
	case EventAnswer:
		in, err = decodeAs[Answer](f.Data)
	case EventICE:
		in, err = decodeAs[ICECandidate](f.Data)
	case EventEnd:
		in, err = decodeAs[EndCall](f.Data)
	case EventTypingStart:
		in, err = decodeAs[TypingStart](f.Data)
	case EventTypingStop:
		in, err = decodeAs[TypingStop](f.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func decodeAs[T Inbound](data json.RawMessage) (Inbound, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	}
	return v, nil
}

// EncodeFrame wraps an outbound event in its envelope.
func EncodeFrame(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return json.Marshal(Frame{Event: ev.Name(), Data: data})
}
