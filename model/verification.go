package model

import (
	"time"
)

const (
	BucketVerification = "verification"
	BucketChallenge    = "challenge"
)

type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusFailed   VerificationStatus = "failed"
	StatusRejected VerificationStatus = "rejected"
	StatusKicked   VerificationStatus = "kicked"
)

// Terminal reports whether no further transition can happen except deletion.
func (s VerificationStatus) Terminal() bool {
	return s != StatusPending
}

type VerificationRecord struct {
	Key               Key
	Status            VerificationStatus
	RemainingAttempts int
	CreatedAt         time.Time
}

// Challenge exists iff a pending VerificationRecord exists for the same key.
// Answer is reproducible from Expression alone; division results are rounded
// to two decimal digits.
type Challenge struct {
	Key        Key
	Expression string
	Answer     float64
	IssuedAt   time.Time
}
