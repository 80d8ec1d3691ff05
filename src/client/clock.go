package client

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Clock schedules reconnect attempts. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
