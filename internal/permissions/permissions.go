package permissions

import (
	"context"
	"sync"
)

// Status mirrors the platform microphone authorization states.
type Status int

const (
	StatusNotDetermined Status = iota
	StatusRestricted
	StatusDenied
	StatusAuthorized
)

func (s Status) String() string {
	switch s {
	case StatusNotDetermined:
		return "not-determined"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Gate resolves microphone authorization. Authorize may block the
// calling goroutine while the user decides; the answer is terminal for
// this call and is never retried internally.
type Gate interface {
	Authorize(ctx context.Context) bool
}

// StaticGate answers from a fixed status, recording whether a prompt
// was shown. It backs platforms without an OS-level gate and tests.
type StaticGate struct {
	mu       sync.Mutex
	status   Status
	decision bool
	prompted bool
}

// NewStaticGate returns a gate in the given status. decision is the
// answer the simulated user gives if a prompt is required.
func NewStaticGate(status Status, decision bool) *StaticGate {
	return &StaticGate{status: status, decision: decision}
}

func (g *StaticGate) Authorize(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.status {
	case StatusAuthorized:
		return true
	case StatusDenied, StatusRestricted:
		return false
	case StatusNotDetermined:
		// The prompt is shown at most once; the decision then becomes
		// the terminal status.
		g.prompted = true
		if g.decision {
			g.status = StatusAuthorized
		} else {
			g.status = StatusDenied
		}
		return g.decision
	default:
		// Fail closed on statuses this build does not know about.
		return false
	}
}

// Prompted reports whether Authorize ever had to ask the user.
func (g *StaticGate) Prompted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompted
}
