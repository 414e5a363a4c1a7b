package config

import "time"

// Server defaults
const (
	DefaultPort         = "5000"
	DefaultBackend      = BackendInflux
	DefaultDataDir      = "./data/thermonest"
	DefaultMaxStorageGB = 1
	DefaultMaxMemoryMB  = 48
	DefaultOrigins      = "http://localhost:3000"
	DefaultTimezone     = "Local"
	DefaultMQTTTopic    = "thermonest/+/readings"
	DefaultMQTTClientID = "thermonest-ingest"

	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
)

// Storage backends
const (
	BackendInflux = "influx"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Query timeouts and circuit breaker
const (
	QueryTimeout          = 10 * time.Second
	BreakerMaxRequests    = 3
	BreakerInterval       = 1 * time.Minute
	BreakerOpenTimeout    = 30 * time.Second
	BreakerFailureTrigger = 5
)

// Live stream
const (
	LiveInterval     = 5 * time.Second
	LiveQueryTimeout = 4 * time.Second
)

// Presence registry
const (
	PresenceTTL           = 60 * time.Second
	PresenceSweepInterval = 30 * time.Second
)

// Alert debounce
const (
	AlertDebounce = 1 * time.Hour
)

// Retention and maintenance
const (
	RetentionInterval = 1 * time.Hour
	RetentionWindow   = 30 * 24 * time.Hour
	BadgerGCInterval  = 10 * time.Minute
)

// Ingest limits and reconnect backoff
const (
	IngestWriteTimeout   = 5 * time.Second
	IngestInitialBackoff = 1 * time.Second
	IngestMaxBackoff     = 1 * time.Minute
	MQTTKeepAlive        = 30
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSSendBuffer      = 16
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
	WSMaxMessageSize  = 4096
)
