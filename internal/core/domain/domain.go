package domain

import "time"

// User is the persisted identity. JSON names follow the web client.
type User struct {
	ID           string    `json:"_id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePic   string    `json:"profilePic"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Group is the authoritative group membership. Rooms in the relay are only
// live subscriptions and never derived from this.
type Group struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	AdminID   string    `json:"adminId"`
	Users     []User    `json:"users"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasMember reports whether userID is in the group.
func (g *Group) HasMember(userID string) bool {
	for _, u := range g.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Message is a direct (ReceiverID set) or group (GroupID set) chat entry.
// Attachments are URLs or inline payloads produced by the media collaborator.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	Sender     *User     `json:"sender,omitempty"`
	ReceiverID string    `json:"receiverId,omitempty"`
	GroupID    string    `json:"groupId,omitempty"`
	Text       string    `json:"text"`
	Image      string    `json:"image,omitempty"`
	Audio      string    `json:"audio,omitempty"`
	File       string    `json:"file,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	IsDeleted  bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MessageContent is the client supplied part of a message.
type MessageContent struct {
	Text     string `json:"text"`
	Image    string `json:"image"`
	Audio    string `json:"audio"`
	File     string `json:"file"`
	FileName string `json:"fileName"`
}

func (c MessageContent) Empty() bool {
	return c.Text == "" && c.Image == "" && c.Audio == "" && c.File == ""
}

// SoftDelete clears displayable content and marks the message deleted.
func (m *Message) SoftDelete() {
	m.IsDeleted = true
	m.Text = ""
	m.Image = ""
	m.Audio = ""
	m.File = ""
}

// RoomKind tells the relay what a room identifier refers to.
type RoomKind string

const (
	RoomGroup  RoomKind = "group"
	RoomDirect RoomKind = "direct"
	RoomCall   RoomKind = "call"
)

type CallEventKind string

const (
	CallStarted CallEventKind = "call_started"
	CallEnded   CallEventKind = "call_ended"
)

// CallRecord is a call lifecycle entry published to the call journal.
type CallRecord struct {
	Kind         CallEventKind `json:"kind"`
	RoomID       string        `json:"room_id"`
	Participants []string      `json:"participants"`
	At           time.Time     `json:"at"`
}

// CallSession is the persisted call history row.
type CallSession struct {
	RoomID       string     `json:"roomId"`
	Participants []string   `json:"participants"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}

// LastSeen describes a user's presence for profile views.
type LastSeen struct {
	UserID   string     `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
