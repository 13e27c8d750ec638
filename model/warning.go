package model

import (
	"time"
)

const (
	BucketWarning      = "warning"
	BucketReachedLimit = "reachedLimit"
	BucketSwitch       = "switch"
)

type WarningRecord struct {
	Key       Key
	Count     int
	UpdatedAt time.Time
}
