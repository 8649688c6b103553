package main

type (
	ServiceConfig struct {
		Environment string `env:"SNAPTRACE_ENVIRONMENT" env-default:"development"`
		Port        string `env:"SNAPTRACE_PORT" env-default:"8080"`

		SentryDSN string `env:"SENTRY_DSN"`

		// When a bucket is configured snapshots are persisted to GCS,
		// otherwise to a local badger database.
		SnapshotsBucket string `env:"SNAPTRACE_SNAPSHOTS_BUCKET"`
		BadgerPath      string `env:"SNAPTRACE_BADGER_PATH" env-default:"snaptrace-snapshots"`

		SnapshotsKafkaBrokers []string `env:"SNAPTRACE_KAFKA_BROKERS"`
		SnapshotsKafkaTopic   string   `env:"SNAPTRACE_KAFKA_TOPIC" env-default:"trace-snapshots"`

		SimulateWorkload bool `env:"SNAPTRACE_SIMULATE_WORKLOAD" env-default:"true"`
	}
)
