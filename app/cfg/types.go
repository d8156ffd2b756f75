package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath string

	// Synchronization
	TickInterval   time.Duration
	NetworkTimeout time.Duration
	WorkerCount    int
	UserAgent      string

	// Presentation
	LineLength    int
	FlashDuration time.Duration

	// Application metadata
	Debug   bool
	Version string
}
