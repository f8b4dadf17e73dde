// Package event defines the WMD journal event model: every state change the
// core commits appends exactly one immutable event, hash-chained in append
// order for tamper evidence and fanned out to delivery sinks via the outbox.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of journal event.
type Type string

// Research events.
const (
	// TypeResearchStarted records a timed research job starting.
	TypeResearchStarted Type = "research.started"
	// TypeResearchCompleted records a tech entering the completed set,
	// by deadline or by instant RP completion.
	TypeResearchCompleted Type = "research.completed"
)

// Vote events.
const (
	// TypeVoteCreated records a new clan proposal.
	TypeVoteCreated Type = "vote.created"
	// TypeVoteCast records one ballot.
	TypeVoteCast Type = "vote.cast"
	// TypeVotePassed records a vote reaching quorum.
	TypeVotePassed Type = "vote.passed"
	// TypeVoteFailed records quorum becoming unreachable.
	TypeVoteFailed Type = "vote.failed"
	// TypeVoteVetoed records a leader veto.
	TypeVoteVetoed Type = "vote.vetoed"
	// TypeVoteExpired records the voting window closing unresolved.
	TypeVoteExpired Type = "vote.expired"
)

// Combat events.
const (
	// TypeMissileBuilt records a missile entering the READY pool.
	TypeMissileBuilt Type = "missile.built"
	// TypeMissileLaunched records a missile entering flight.
	TypeMissileLaunched Type = "missile.launched"
	// TypeMissileIntercepted records a successful interception.
	TypeMissileIntercepted Type = "missile.intercepted"
	// TypeInterceptionMissed records a failed interception attempt.
	TypeInterceptionMissed Type = "interception.missed"
	// TypeMissileImpacted records a missile reaching its target.
	TypeMissileImpacted Type = "missile.impacted"
	// TypeBatteryDeployed records a new defense battery.
	TypeBatteryDeployed Type = "battery.deployed"
	// TypeBatteryRepaired records a battery repair.
	TypeBatteryRepaired Type = "battery.repaired"
	// TypeBatteryDismantled records a battery removal.
	TypeBatteryDismantled Type = "battery.dismantled"
	// TypeBatteryDestroyed records a battery reaching zero HP.
	TypeBatteryDestroyed Type = "battery.destroyed"
)

// Event is one immutable record in the global WMD journal.
type Event struct {
	// Seq is the global journal sequence (starts at 1, contiguous).
	// Assigned by storage on append.
	Seq uint64
	// Type identifies the kind of event.
	Type Type
	// ActorID is the player whose action produced the event (empty for
	// sweep-produced events).
	ActorID string
	// ClanID scopes the event for clan-room fan-out (empty when the event
	// is player-private).
	ClanID string
	// EntityID is the primary record the event concerns.
	EntityID string
	// Payload carries display data for downstream consumers.
	Payload json.RawMessage
	// ChainHash links this event to its predecessor (SHA-256 over the
	// previous chain hash and this event's envelope). Assigned by storage.
	ChainHash string
	// CreatedAt is when the event was committed.
	CreatedAt time.Time
}

// New builds an unappended event with a marshaled payload.
func New(eventType Type, actorID, clanID, entityID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		Type:     eventType,
		ActorID:  actorID,
		ClanID:   clanID,
		EntityID: entityID,
		Payload:  raw,
	}, nil
}

// ChainHash computes the hash linking evt to the previous chain hash.
//
// The envelope is a fixed field order so the chain cannot drift between
// writers: prevHash | seq | type | actor | clan | entity | payload |
// createdAt (UnixMilli).
func ChainHash(evt Event, prevHash string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|", prevHash, evt.Seq, evt.Type, evt.ActorID, evt.ClanID, evt.EntityID)
	h.Write(evt.Payload)
	fmt.Fprintf(h, "|%d", evt.CreatedAt.UTC().UnixMilli())
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain recomputes the hash chain over events in sequence order and
// returns the first sequence whose stored hash does not match, or 0 when
// the chain verifies.
func VerifyChain(events []Event) uint64 {
	prev := ""
	for _, evt := range events {
		if ChainHash(evt, prev) != evt.ChainHash {
			return evt.Seq
		}
		prev = evt.ChainHash
	}
	return 0
}
