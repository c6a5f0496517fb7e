package domain

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrGroupNotFound      = errors.New("group not found")
	ErrNotGroupAdmin      = errors.New("only the group admin can do this")
	ErrAlreadyMember      = errors.New("user already in group")
	ErrNotMember          = errors.New("user not in group")
	ErrAdminMustTransfer  = errors.New("transfer admin role to another member before leaving the group")
	ErrMessageNotFound    = errors.New("message not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrMalformedEvent     = errors.New("malformed event")
	ErrCallFull           = errors.New("call already has two participants")
	ErrCallEnded          = errors.New("call has ended")
)
