package domain

import (
	"time"
)

// ScheduledTask is a handle to a recurring task. Cancel is idempotent.
type ScheduledTask interface {
	Cancel()
}

// Scheduler runs tasks on a fixed interval until they are cancelled.
type Scheduler interface {
	Every(interval time.Duration, task func()) (ScheduledTask, error)
	Start()
	Stop()
}
