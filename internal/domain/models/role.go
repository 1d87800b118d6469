package models

import "fmt"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Satisfies reports whether r may access a route gated on required.
// Unknown roles never satisfy anything.
func (r Role) Satisfies(required Role) bool {
	switch r {
	case RoleAdmin:
		return required == RoleAdmin || required == RoleUser
	case RoleUser:
		return required == RoleUser
	default:
		return false
	}
}
