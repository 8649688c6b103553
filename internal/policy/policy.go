package policy

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ThresholdDisabled is the reserved threshold value meaning "never persist
// via this rule".
const ThresholdDisabled = -1

type (
	// Config holds the persistence thresholds. Thresholds are in
	// milliseconds, durations are in nanosecond ticks.
	Config struct {
		PersistenceThresholdMillis     int64  `env:"SNAPTRACE_PERSISTENCE_THRESHOLD_MS" env-default:"3000"`
		FinePersistenceThresholdMillis int64  `env:"SNAPTRACE_FINE_PERSISTENCE_THRESHOLD_MS" env-default:"-1"`
		UserPersistenceThresholdMillis int64  `env:"SNAPTRACE_USER_PERSISTENCE_THRESHOLD_MS" env-default:"0"`
		TrackedUserID                  string `env:"SNAPTRACE_TRACKED_USER_ID"`
	}

	// Summary is the read-only view of a trace the policy decides over. The
	// duration is whatever single total the caller already computed, it is
	// not re-derived here.
	Summary struct {
		Stuck         bool
		Error         bool
		Fine          bool
		UserID        string
		DurationTicks int64
	}
)

// LoadConfig reads the persistence thresholds from the environment.
func LoadConfig() (Config, error) {
	var c Config
	err := cleanenv.ReadEnv(&c)
	return c, err
}

// ShouldPersist decides whether a trace is worth retaining. First match wins.
func ShouldPersist(s Summary, c Config) bool {
	if s.Stuck || s.Error {
		return true
	}
	// check if should persist for user tracing
	if s.UserID != "" && s.UserID == c.TrackedUserID &&
		s.DurationTicks >= millisToTicks(c.UserPersistenceThresholdMillis) {
		return true
	}
	// check if should persist for fine-grained profiling
	if s.Fine && c.FinePersistenceThresholdMillis != ThresholdDisabled {
		return s.DurationTicks >= millisToTicks(c.FinePersistenceThresholdMillis)
	}
	// fall back to the general persistence threshold
	return c.PersistenceThresholdMillis != ThresholdDisabled &&
		s.DurationTicks >= millisToTicks(c.PersistenceThresholdMillis)
}

func millisToTicks(millis int64) int64 {
	return millis * int64(time.Millisecond)
}
