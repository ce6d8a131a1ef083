package main

import (
	"os"
	"time"
)

// config holds everything the projector reads from its environment: broker
// URL, stream name, consumer name, and target-specific credentials.
type config struct {
	brokerURL     string
	stream        string
	consumer      string
	subjectFilter string

	credentialsURL string // gocloud.dev/secrets URL; empty means no auth

	projectionDSN string
	environment   string
}

func loadConfig() config {
	return config{
		brokerURL:      getenv("EVENTCORE_BROKER_URL", defaultBrokerURL),
		stream:         getenv("EVENTCORE_STREAM", "EVENTCORE_EVENTS"),
		consumer:       getenv("EVENTCORE_CONSUMER", "compute-view-projector"),
		subjectFilter:  getenv("EVENTCORE_SUBJECT_FILTER", "infrastructure.compute.>"),
		credentialsURL: os.Getenv("EVENTCORE_CREDENTIALS_URL"),
		projectionDSN:  getenv("EVENTCORE_PROJECTION_DSN", "file:compute_view.db?cache=shared"),
		environment:    getenv("EVENTCORE_ENVIRONMENT", "production"),
	}
}

const defaultBrokerURL = "nats://127.0.0.1:4222"

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

const fetchTimeout = 5 * time.Second
