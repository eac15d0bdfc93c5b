package mudsmoke

import (
	"context"
	"os"
	"time"
)

// Harness runs scenarios one after another against the same server, each
// over its own fresh connection.
type Harness struct {
	Scenarios     []Scenario
	DriverOptions []DriverOption
	// Pause separates scenarios so the server can finish tearing down the
	// previous session.
	Pause    time.Duration
	Strict   bool
	Reporter *Reporter

	enableProfiling bool
	transcript      *os.File // opened by NewHarnessFromArgs
}

// Close releases files the harness opened for itself.
func (h *Harness) Close() error {
	if h.transcript == nil {
		return nil
	}
	err := h.transcript.Close()
	h.transcript = nil
	return err
}

// Run executes every scenario in order and returns the process exit
// status. A scenario that cannot connect stops the run with status 1, as
// does cancelling ctx, which is noticed between steps.
func (h *Harness) Run(ctx context.Context) int {
	results := make([]*ScenarioResult, 0, len(h.Scenarios))
	for i := range h.Scenarios {
		s := &h.Scenarios[i]
		if i > 0 && !sleepContext(ctx, h.Pause) {
			break
		}
		res, err := h.runScenario(ctx, s)
		if err != nil {
			h.Reporter.ConnectionFailed(s, err)
			return 1
		}
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	status := h.Reporter.Summary(results, h.Strict)
	if ctx.Err() != nil {
		return 1
	}
	return status
}

// runScenario gives s a driver of its own, which is always disconnected
// when the scenario ends.
func (h *Harness) runScenario(ctx context.Context, s *Scenario) (*ScenarioResult, error) {
	d, err := NewDriver(h.DriverOptions...)
	if err != nil {
		return nil, err
	}
	defer d.Disconnect()
	err = d.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, d, h.Reporter), nil
}

// sleepContext sleeps for d, returning false early if ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
