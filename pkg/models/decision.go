package models

import "strings"

// DecisionSignal is the coarse verdict a candidate generator attaches to a proposal.
type DecisionSignal string

const (
	SignalAccept DecisionSignal = "accept"
	SignalRevise DecisionSignal = "revise"
	SignalReject DecisionSignal = "reject"
)

// ParseDecisionSignal validates a generator-supplied signal against the closed set of
// known values. Anything unknown is treated as a rejection.
func ParseDecisionSignal(raw string) DecisionSignal {
	switch DecisionSignal(strings.ToLower(strings.TrimSpace(raw))) {
	case SignalAccept:
		return SignalAccept
	case SignalRevise:
		return SignalRevise
	default:
		return SignalReject
	}
}

// AllowsAcceptance reports whether the signal permits the candidate to be accepted.
func (s DecisionSignal) AllowsAcceptance() bool {
	return s == SignalAccept || s == SignalRevise
}

// Decision is the outcome of a refinement cycle.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
	DecisionHalted   Decision = "halted"
)
