package metrics

import "time"

type PublisherMetrics interface {
	DraftsPolled(n int)
	QueueLength(n int)
	SessionStarted()
	SessionSucceeded()
	SessionFailed()
	SessionLatency(d time.Duration)
	Heartbeat()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) DraftsPolled(int)             {}
func (Nop) QueueLength(int)              {}
func (Nop) SessionStarted()              {}
func (Nop) SessionSucceeded()            {}
func (Nop) SessionFailed()               {}
func (Nop) SessionLatency(time.Duration) {}
func (Nop) Heartbeat()                   {}
