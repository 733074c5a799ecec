package data

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
	RoleSupport    Role = "support"
	RoleQA         Role = "qa"
)

// Roles lists every role in display order.
var Roles = []Role{RoleClient, RoleFreelancer, RoleAdmin, RoleSupport, RoleQA}

// ParseRole validates s against the known roles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleFreelancer, RoleAdmin, RoleSupport, RoleQA:
		return true
	}
	return false
}

// RoleVisitor has one method per role. Code that branches on a role
// implements it, so a new role cannot be added without every caller
// handling it.
type RoleVisitor[T any] interface {
	Client() T
	Freelancer() T
	Admin() T
	Support() T
	QA() T
}

// VisitRole dispatches r to the matching visitor method.
func VisitRole[T any](r Role, v RoleVisitor[T]) (T, error) {
	switch r {
	case RoleClient:
		return v.Client(), nil
	case RoleFreelancer:
		return v.Freelancer(), nil
	case RoleAdmin:
		return v.Admin(), nil
	case RoleSupport:
		return v.Support(), nil
	case RoleQA:
		return v.QA(), nil
	}
	var zero T
	return zero, fmt.Errorf("unknown role %q", r)
}

// staffVisitor answers whether a role is an internal staff role.
type staffVisitor struct{}

func (staffVisitor) Client() bool     { return false }
func (staffVisitor) Freelancer() bool { return false }
func (staffVisitor) Admin() bool      { return true }
func (staffVisitor) Support() bool    { return true }
func (staffVisitor) QA() bool         { return true }

// IsStaff reports whether r is admin, support or qa.
func (r Role) IsStaff() bool {
	ok, _ := VisitRole[bool](r, staffVisitor{})
	return ok
}
