package types

import (
	uuid "github.com/gofrs/uuid"
)

// HTTP Header Constants
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderUID           = "uid"
)

// Authentication Constants
const (
	BearerPrefix = "Bearer "
)

// Common Values
const (
	UserRole  = "user"
	AdminRole = "admin"
)

// UserCtxName is the fiber.Locals key under which the authenticated
// user context is stored by the auth middleware.
const UserCtxName = "user"

// UserContext carries the identity claims of an externally authenticated
// caller. Tokens are issued by the upstream auth service; this layer only
// verifies them and reads these fields.
type UserContext struct {
	UserID      uuid.UUID `json:"uid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	SystemRole  string    `json:"role"`
	CreatedDate int64     `json:"createdDate"`
}
