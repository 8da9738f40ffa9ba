package attach

import "errors"

var (
	// ErrJobVanished is returned when a job that was visible in the queue's
	// listing has been missing from it for longer than the vanish grace period.
	ErrJobVanished = errors.New("job vanished from queue listing")

	// ErrMonitorUsed is returned when a Monitor that has already followed a
	// job is run again.
	ErrMonitorUsed = errors.New("monitor already used")
)
