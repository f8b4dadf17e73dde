// Package roster defines the clan membership oracle the WMD core consults
// for proposal rights, ballot eligibility, and veto permissions.
package roster

import (
	"context"
	"errors"
	"time"
)

// Role is a member's rank within a clan.
type Role string

const (
	// RoleLeader is the clan leader.
	RoleLeader Role = "LEADER"
	// RoleCoLeader is a clan co-leader.
	RoleCoLeader Role = "CO_LEADER"
	// RoleMember is a regular clan member.
	RoleMember Role = "MEMBER"
)

// ErrNoMembership indicates the player does not belong to the clan.
var ErrNoMembership = errors.New("no clan membership")

// Membership is one player's membership in a clan.
type Membership struct {
	ClanID   string
	PlayerID string
	Role     Role
	JoinedAt time.Time
}

// Oracle looks up clan membership and roles.
//
// Implementations must reflect the current roster; quorum snapshots taken at
// vote creation are the caller's concern, not the oracle's.
type Oracle interface {
	// Member returns the membership for one player in one clan, or
	// ErrNoMembership.
	Member(ctx context.Context, clanID, playerID string) (Membership, error)
	// Members returns the full current roster of a clan.
	Members(ctx context.Context, clanID string) ([]Membership, error)
	// MemberOf returns the membership for the clan the player belongs to,
	// or ErrNoMembership when the player is clanless.
	MemberOf(ctx context.Context, playerID string) (Membership, error)
}
