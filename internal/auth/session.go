package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type Role string

const (
	RoleOwner     Role = "owner"
	RoleManager   Role = "manager"
	RoleCashier   Role = "cashier"
	RoleKitchen   Role = "kitchen"
	RoleWaitstaff Role = "waitstaff"
	// RoleSystem is used for transitions the core performs on its own, like auto-ready.
	RoleSystem Role = "system"
)

// Session identifies who is acting and where. It is passed explicitly into
// every core operation.
type Session struct {
	ActorID  string
	Role     Role
	BranchID string
}

// System returns the session used for automatic transitions in a branch.
func System(branchID string) Session {
	return Session{ActorID: "system", Role: RoleSystem, BranchID: branchID}
}

func (s Session) Can(resource, action string) bool {
	return DefaultPolicy.CanAccess(s.Role, resource, action)
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// FromMetadata reads the session headers set by the gateway in front of the terminals.
func FromMetadata(ctx context.Context) (Session, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Session{}, false
	}
	s := Session{
		ActorID:  first(md, "x-actor-id"),
		Role:     Role(first(md, "x-role")),
		BranchID: first(md, "x-branch-id"),
	}
	if s.ActorID == "" || s.Role == "" {
		return Session{}, false
	}
	return s, true
}

func first(md metadata.MD, key string) string {
	if val := md.Get(key); len(val) > 0 {
		return val[0]
	}
	return ""
}
