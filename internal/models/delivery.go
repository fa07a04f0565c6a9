package models

// OutcomeKind classifies the result of one delivery attempt. The sync engine
// relies on this contract: retryable outcomes leave the message pending,
// permanent ones fail it.
type OutcomeKind string

const (
	OutcomeDelivered        OutcomeKind = "delivered"
	OutcomeRetryableFailure OutcomeKind = "retryable"
	OutcomePermanentFailure OutcomeKind = "permanent"
)

// Outcome is the classified result of a delivery attempt.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

func Delivered() Outcome {
	return Outcome{Kind: OutcomeDelivered}
}

func RetryableFailure(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryableFailure, Reason: reason}
}

func PermanentFailure(reason string) Outcome {
	return Outcome{Kind: OutcomePermanentFailure, Reason: reason}
}
