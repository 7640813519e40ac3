package operations

import "time"

// Scheduler runs fn once after delay. The returned function cancels a task
// that has not started yet; it is safe to call more than once.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) (cancel func())
}

// TimerScheduler is the wall-clock Scheduler
type TimerScheduler struct{}

// Schedule implements Scheduler with time.AfterFunc
func (TimerScheduler) Schedule(delay time.Duration, fn func()) func() {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}
