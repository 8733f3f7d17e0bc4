package util

import (
	"fmt"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/metrics"
)

// SafeGo launches a goroutine with panic recovery.
// If the goroutine panics, the panic is recovered, logged, and counted.
func SafeGo(logger *golog.Logger, component string, fn func()) {
	go func() {
		defer Recover(logger, component)
		fn()
	}()
}

// Recover is deferred by long-lived loops that must not take the process down.
func Recover(logger *golog.Logger, component string) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered in goroutine",
			"component", component,
			"panic", fmt.Sprintf("%v", r))
		metrics.PanicsRecovered.WithLabelValues(component).Inc()
	}
}
