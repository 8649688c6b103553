package policy

import (
	"testing"
	"time"
)

func TestShouldPersist(t *testing.T) {
	allDisabled := Config{
		PersistenceThresholdMillis:     ThresholdDisabled,
		FinePersistenceThresholdMillis: ThresholdDisabled,
		UserPersistenceThresholdMillis: ThresholdDisabled,
	}

	tests := []struct {
		name    string
		summary Summary
		config  Config
		want    bool
	}{
		{
			name:    "stuckDominatesEverything",
			summary: Summary{Stuck: true, DurationTicks: 0},
			config:  allDisabled,
			want:    true,
		},
		{
			name:    "errorDominatesEverything",
			summary: Summary{Error: true, DurationTicks: 0},
			config:  allDisabled,
			want:    true,
		},
		{
			name: "trackedUserOverThreshold",
			summary: Summary{
				UserID:        "u-1",
				DurationTicks: int64(50 * time.Millisecond),
			},
			config: Config{
				PersistenceThresholdMillis:     ThresholdDisabled,
				FinePersistenceThresholdMillis: ThresholdDisabled,
				UserPersistenceThresholdMillis: 40,
				TrackedUserID:                  "u-1",
			},
			want: true,
		},
		{
			name: "untrackedUserFallsThrough",
			summary: Summary{
				UserID:        "u-2",
				DurationTicks: int64(50 * time.Millisecond),
			},
			config: Config{
				PersistenceThresholdMillis:     ThresholdDisabled,
				FinePersistenceThresholdMillis: ThresholdDisabled,
				UserPersistenceThresholdMillis: 40,
				TrackedUserID:                  "u-1",
			},
			want: false,
		},
		{
			name: "fineThresholdMet",
			summary: Summary{
				Fine:          true,
				DurationTicks: int64(200 * time.Millisecond),
			},
			config: Config{
				PersistenceThresholdMillis:     ThresholdDisabled,
				FinePersistenceThresholdMillis: 100,
			},
			want: true,
		},
		{
			// the fine branch short-circuits the general fallback even when
			// the general threshold would have persisted the trace
			name: "fineThresholdMissedShortCircuits",
			summary: Summary{
				Fine:          true,
				DurationTicks: int64(50 * time.Millisecond),
			},
			config: Config{
				PersistenceThresholdMillis:     10,
				FinePersistenceThresholdMillis: 100,
			},
			want: false,
		},
		{
			name: "fineDisabledFallsBackToGeneral",
			summary: Summary{
				Fine:          true,
				DurationTicks: int64(50 * time.Millisecond),
			},
			config: Config{
				PersistenceThresholdMillis:     10,
				FinePersistenceThresholdMillis: ThresholdDisabled,
			},
			want: true,
		},
		{
			name: "generalThresholdMet",
			summary: Summary{
				DurationTicks: int64(3 * time.Second),
			},
			config: Config{
				PersistenceThresholdMillis:     3000,
				FinePersistenceThresholdMillis: ThresholdDisabled,
			},
			want: true,
		},
		{
			name: "generalThresholdMissed",
			summary: Summary{
				DurationTicks: int64(3*time.Second) - 1,
			},
			config: Config{
				PersistenceThresholdMillis:     3000,
				FinePersistenceThresholdMillis: ThresholdDisabled,
			},
			want: false,
		},
		{
			name: "everythingDisabledNeverPersists",
			summary: Summary{
				DurationTicks: int64(time.Hour),
			},
			config: allDisabled,
			want:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ShouldPersist(test.summary, test.config); got != test.want {
				t.Fatalf("got %t, want %t", got, test.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SNAPTRACE_PERSISTENCE_THRESHOLD_MS", "500")
	t.Setenv("SNAPTRACE_FINE_PERSISTENCE_THRESHOLD_MS", "-1")
	t.Setenv("SNAPTRACE_TRACKED_USER_ID", "u-42")

	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("we should be able to load the config: %v", err)
	}
	if c.PersistenceThresholdMillis != 500 {
		t.Fatalf("got %d, want 500", c.PersistenceThresholdMillis)
	}
	if c.FinePersistenceThresholdMillis != ThresholdDisabled {
		t.Fatalf("got %d, want disabled", c.FinePersistenceThresholdMillis)
	}
	if c.TrackedUserID != "u-42" {
		t.Fatalf("got %q, want u-42", c.TrackedUserID)
	}
}
