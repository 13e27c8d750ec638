package model

import (
	"time"
)

const (
	BucketLedger = "ledger"
	BucketEcho   = "echo"
	BucketAck    = "ack"
)

type EchoPurpose string

const (
	// EchoTrack appends the acknowledged message id to the ledger so it can
	// be recalled when the verification resolves.
	EchoTrack EchoPurpose = "track"
	// EchoDelayedRecall recalls the acknowledged message after a fixed delay.
	EchoDelayedRecall EchoPurpose = "delayed-recall"
)

// Echo correlates an outbound send with the message id the gateway reports
// back. The token is registered before the acknowledgment can be consumed.
type Echo struct {
	Token     string
	Key       Key
	Purpose   EchoPurpose
	CreatedAt time.Time
}

// Ack is a message id that arrived before its echo registration.
type Ack struct {
	Token     string
	MessageID int
	GroupID   int64
	CreatedAt time.Time
}
