//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation -framework Foundation

int microphoneAuthorizationStatus(void);
void requestMicrophoneAccess(void);
*/
import "C"

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// authResults receives the user's decision from the AVFoundation
// completion handler. Buffered so the Objective-C callback never blocks.
var authResults = make(chan bool, 1)

//export micAuthResult
func micAuthResult(granted C.int) {
	select {
	case authResults <- granted == 1:
	default:
	}
}

type osGate struct {
	log zerolog.Logger
	mu  sync.Mutex
}

// NewGate returns the macOS microphone permission gate.
func NewGate(log zerolog.Logger) Gate {
	return &osGate{log: log}
}

func (g *osGate) Authorize(ctx context.Context) bool {
	switch Status(C.microphoneAuthorizationStatus()) {
	case StatusAuthorized:
		return true
	case StatusDenied, StatusRestricted:
		return false
	case StatusNotDetermined:
		g.mu.Lock()
		defer g.mu.Unlock()

		// A concurrent caller may have resolved the prompt while we
		// waited for the lock.
		if st := Status(C.microphoneAuthorizationStatus()); st != StatusNotDetermined {
			return st == StatusAuthorized
		}

		g.log.Info().Msg("Requesting microphone access")
		C.requestMicrophoneAccess()

		select {
		case granted := <-authResults:
			return granted
		case <-ctx.Done():
			g.log.Warn().Msg("Gave up waiting for microphone authorization")
			return false
		}
	default:
		// Fail closed on statuses this build does not know about.
		return false
	}
}
