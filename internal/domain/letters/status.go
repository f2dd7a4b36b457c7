package letters

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusWithdrawn       Status = "withdrawn"
	StatusLetterGenerated Status = "letter_generated"
	StatusSentForSigning  Status = "sent_for_signing"
	StatusSigned          Status = "signed"
	StatusCompleted       Status = "completed"
)

type Event string

const (
	EventApprove        Event = "approve"
	EventReject         Event = "reject"
	EventWithdraw       Event = "withdraw"
	EventMarkGenerated  Event = "mark_generated"
	EventSendForSigning Event = "send_for_signing"
	EventSigned         Event = "signed"
	EventComplete       Event = "complete"
	EventRetake         Event = "retake"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the single source of truth for the request lifecycle.
// Every status change goes through Next; anything not listed is illegal.
// Retake is handled separately: it returns any request to pending.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventApprove:       StatusApproved,
		EventReject:        StatusRejected,
		EventWithdraw:      StatusWithdrawn,
		EventMarkGenerated: StatusLetterGenerated,
	},
	StatusLetterGenerated: {
		EventApprove:        StatusApproved,
		EventReject:         StatusRejected,
		EventSendForSigning: StatusSentForSigning,
	},
	StatusApproved: {
		EventSendForSigning: StatusSentForSigning,
	},
	StatusSentForSigning: {
		EventSigned:   StatusSigned,
		EventComplete: StatusCompleted,
	},
	StatusSigned: {
		EventComplete: StatusCompleted,
	},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusWithdrawn,
		StatusLetterGenerated, StatusSentForSigning, StatusSigned, StatusCompleted:
		return true
	}
	return false
}

// Next returns the status reached by applying event to current.
func Next(current Status, event Event) (Status, error) {
	if event == EventRetake {
		return StatusPending, nil
	}
	if targets, ok := transitions[current]; ok {
		if next, ok := targets[event]; ok {
			return next, nil
		}
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, event)
}

// Can reports whether the event is legal from the current status.
func Can(current Status, event Event) bool {
	_, err := Next(current, event)
	return err == nil
}
