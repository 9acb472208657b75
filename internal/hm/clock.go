package hm

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the timestamps written to the journal and the fix log.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in UTC, truncated to the microsecond
// precision PostgreSQL timestamps keep.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// IDGenerator names runs.
type IDGenerator interface {
	New() string
}

// UUIDGenerator names runs with random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
