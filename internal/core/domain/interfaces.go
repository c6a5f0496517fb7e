package domain

import "context"

// UserRepository handles the persistent identity
type UserRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers returns every user except excludeID (empty excludes nobody).
	ListUsers(ctx context.Context, excludeID string) ([]User, error)
	UpdateProfilePic(ctx context.Context, id, pic string) (*User, error)
}

// GroupRepository owns groups and their member lists.
type GroupRepository interface {
	CreateGroup(ctx context.Context, g *Group, memberIDs []string) error
	GetGroupByID(ctx context.Context, id string) (*Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	DeleteGroup(ctx context.Context, id string) error
}

// MessageRepository persists direct and group messages.
type MessageRepository interface {
	// CreateMessage stores m and fills its generated timestamps.
	CreateMessage(ctx context.Context, m *Message) error
	GetMessageByID(ctx context.Context, id string) (*Message, error)
	// ListDirect returns the conversation between a and b, oldest first.
	ListDirect(ctx context.Context, a, b string) ([]Message, error)
	// ListGroup returns a group's messages with senders, oldest first.
	ListGroup(ctx context.Context, groupID string) ([]Message, error)
	SoftDelete(ctx context.Context, id string) (*Message, error)
	// SearchDirect matches text in the a/b conversation, newest first.
	SearchDirect(ctx context.Context, a, b, query string, limit int) ([]Message, error)
	DeleteGroupMessages(ctx context.Context, groupID string) error
}

// CallRepository stores call history built from the call journal.
type CallRepository interface {
	SaveCallRecord(ctx context.Context, rec CallRecord) error
	ListCallsForUser(ctx context.Context, userID string, limit int) ([]CallSession, error)
}
