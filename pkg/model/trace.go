// Generator contracts for bandwidth, delay, loss, duplication and per-packet delay traces
// Every generator is pulled segment by segment until it reports exhaustion
package model

import (
	"errors"
	"time"

	"github.com/andrewh/netem-trace/pkg/unit"
)

// ErrInvalidConfig is wrapped by every construction-time validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// LossPattern lists packet loss probabilities in [0, 1]. The i-th entry applies
// to a packet whose i-1 predecessors were all lost.
type LossPattern []float64

// DuplicatePattern lists packet duplication probabilities in [0, 1], indexed the
// same way as LossPattern.
type DuplicatePattern []float64

// BwTrace produces bandwidth segments. ok is false once the trace is exhausted
// and stays false on every later call.
type BwTrace interface {
	NextBw() (bw unit.Bandwidth, d time.Duration, ok bool)
}

// DelayTrace produces one-way delay segments.
type DelayTrace interface {
	NextDelay() (delay time.Duration, d time.Duration, ok bool)
}

// LossTrace produces loss pattern segments.
type LossTrace interface {
	NextLoss() (loss LossPattern, d time.Duration, ok bool)
}

// DuplicateTrace produces duplication pattern segments.
type DuplicateTrace interface {
	NextDuplicate() (dup DuplicatePattern, d time.Duration, ok bool)
}

// DelayPerPacketTrace produces one delay per packet rather than per time segment.
type DelayPerPacketTrace interface {
	NextDelay() (delay time.Duration, ok bool)
}

// Config is the part of a trace configuration shared by every signal kind.
//
// Tag is the stable identifier used in tagged documents. Validate reports
// construction-fatal problems without building anything. Describe walks the
// serialisable fields in declaration order; see Fields.
//
// Configurations are plain data and Build never mutates them, so one value can
// be built any number of times. They must not be modified while a generator
// built from them (directly or through a repeated pattern) is still in use.
type Config interface {
	Tag() string
	Validate() error
	Describe(f *Fields)
}

// BwConfig builds bandwidth traces.
type BwConfig interface {
	Config
	Build() (BwTrace, error)
}

// DelayConfig builds delay traces.
type DelayConfig interface {
	Config
	Build() (DelayTrace, error)
}

// LossConfig builds loss traces.
type LossConfig interface {
	Config
	Build() (LossTrace, error)
}

// DuplicateConfig builds duplication traces.
type DuplicateConfig interface {
	Config
	Build() (DuplicateTrace, error)
}

// DelayPerPacketConfig builds per-packet delay traces.
type DelayPerPacketConfig interface {
	Config
	Build() (DelayPerPacketTrace, error)
}
