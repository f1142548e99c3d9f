package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowPhaseThreshold is the duration after which a run phase is logged as slow
const SlowPhaseThreshold = 60 * time.Second

// PhaseTimer returns a defer-friendly function that logs how long a run phase took
// and returns the measured duration.
//
// Usage:
//
//	done := utils.PhaseTimer("login", log)
//	defer done()
func PhaseTimer(phase string, log zerolog.Logger) func() time.Duration {
	start := time.Now()

	return func() time.Duration {
		duration := time.Since(start)

		log.Debug().
			Str("phase", phase).
			Dur("duration_ms", duration).
			Msg("Phase completed")

		if duration > SlowPhaseThreshold {
			log.Warn().
				Str("phase", phase).
				Dur("duration", duration).
				Msg("Slow phase detected")
		}

		return duration
	}
}
