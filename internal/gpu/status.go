package gpu

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// NoTimeout makes a wait block until the awaited primitive signals.
const NoTimeout = time.Duration(math.MaxInt64)

// ErrFenceTimeout is returned when a bounded fence wait expires before the
// GPU signals the fence.
var ErrFenceTimeout = errors.New("timed out waiting for fence")

// Status is the non-fatal outcome of an acquire, wait or present call. Hard
// failures are reported through the accompanying error instead.
type Status int

const (
	StatusSuccess Status = iota
	// StatusSuboptimal means the image can still be presented but the chain no
	// longer matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the chain can no longer present to the surface and
	// must be rebuilt.
	StatusOutOfDate
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	case StatusTimeout:
		return "timeout"
	}
	return "unknown"
}

// Stale reports whether the chain should be rebuilt after this status.
func (s Status) Stale() bool {
	return s == StatusSuboptimal || s == StatusOutOfDate
}
