// Package coreevents carries observability events off the hot path: a
// dispatch task publishes a structured result here instead of blocking on a
// notification collaborator, matching the isolation rule in spec.md §7
// ("no error raised inside one follower's dispatch task affects any other
// follower").
package coreevents

import "time"

// EventType identifies the shape of an event's payload.
type EventType string

const (
	ClassificationRejected EventType = "classification.rejected"
	DispatchSubmitted      EventType = "dispatch.submitted"
	DispatchConfirmed      EventType = "dispatch.confirmed"
	DispatchFailed         EventType = "dispatch.failed"
	PlanDropped            EventType = "plan.dropped"
	PositionOpened         EventType = "position.opened"
	PositionClosed         EventType = "position.closed"
)

// Event is the base interface every payload satisfies.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent supplies the common Type/Timestamp fields.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// ClassificationRejectedEvent is published when the Classifier produces a
// definite "not copyable" verdict.
type ClassificationRejectedEvent struct {
	BaseEvent
	LeaderSignature string
	Reason          string
}

// DispatchSubmittedEvent describes a transaction the Submitter has sent
// through the Chain Client's endpoint pool but not yet confirmed. The
// Scheduler does not publish it; dispatch results reach the bus as
// DispatchConfirmed or DispatchFailed.
type DispatchSubmittedEvent struct {
	BaseEvent
	FollowerID      string
	LeaderSignature string
	FollowerSig     string
}

// DispatchConfirmedEvent is published when confirmation succeeds.
type DispatchConfirmedEvent struct {
	BaseEvent
	FollowerID      string
	LeaderSignature string
	FollowerSig     string
	Duration        time.Duration
}

// DispatchFailedEvent is published on confirmation timeout, on-chain
// rejection, or a builder/submission error.
type DispatchFailedEvent struct {
	BaseEvent
	FollowerID      string
	LeaderSignature string
	Reason          string
	Err             string
}

// PlanDroppedEvent is published when the Copy Planner silently drops a
// plan (no position to sell, duplicate buy of a held token, etc).
type PlanDroppedEvent struct {
	BaseEvent
	FollowerID      string
	LeaderSignature string
	Reason          string
}

// PositionOpenedEvent / PositionClosedEvent mirror the Position Ledger's
// state transitions for observability.
type PositionOpenedEvent struct {
	BaseEvent
	FollowerID string
	Mint       string
	AmountRaw  uint64
}

type PositionClosedEvent struct {
	BaseEvent
	FollowerID string
	Mint       string
}
