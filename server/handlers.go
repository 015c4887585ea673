package server

import (
	"context"

	"github.com/onnwee/greeter/greeter"
)

// StatusProvider reports the state of every room.
type StatusProvider interface {
	Status() []greeter.RoomStatus
}

// Check is one readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	bot    string
	status StatusProvider
	checks []Check
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// Checks run in order on every readiness probe.
func NewHandlers(bot string, status StatusProvider, checks ...Check) *Handlers {
	return &Handlers{bot: bot, status: status, checks: checks}
}
