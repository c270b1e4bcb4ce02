package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleDispatcher UserRole = "DISPATCHER"
	UserRoleCommander  UserRole = "COMMANDER"
	UserRoleViewer     UserRole = "VIEWER"
	// UserRoleExternal marks requests authenticated with the shared API key.
	UserRoleExternal UserRole = "EXTERNAL"
)

type Principal struct {
	UserID uuid.UUID
	Role   UserRole
}

func (p Principal) IsExternal() bool {
	return p.Role == UserRoleExternal
}

func (p Principal) CanWrite() bool {
	return p.Role != UserRoleViewer
}

// Author returns the user to record on journal entries, nil for system callers.
func (p Principal) Author() *uuid.UUID {
	if p.UserID == uuid.Nil {
		return nil
	}
	id := p.UserID
	return &id
}
