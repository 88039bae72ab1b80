// Package telemetry exposes the process's pprof endpoint and small
// duration/event logging helpers used throughout the module.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/flowrt/flowrt/internal/obs/logger"
)

// Telemetry holds observability components.
type Telemetry struct {
	log       *logger.Logger
	pprofAddr string
}

// New creates a telemetry helper bound to the given pprof port.
func New(pprofPort int, log *logger.Logger) *Telemetry {
	return &Telemetry{
		log:       log,
		pprofAddr: fmt.Sprintf("localhost:%d", pprofPort),
	}
}

// Start starts the pprof server in the background. Failure to bind is
// logged but never fails process startup.
func (t *Telemetry) Start(ctx context.Context) error {
	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := http.ListenAndServe(t.pprofAddr, nil); err != nil {
			t.log.Error("pprof server error", "error", err)
		}
	}()
	return nil
}

// RecordDuration logs an operation's elapsed time since start.
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	t.log.Debug("operation completed", "operation", operation, "duration_ms", time.Since(start).Milliseconds())
}

// RecordEvent logs a structured telemetry event.
func (t *Telemetry) RecordEvent(event string, attrs map[string]any) {
	t.log.Info("telemetry_event", "event", event, "attrs", attrs)
}
