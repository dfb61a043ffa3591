package service

import "time"

// Clock отделяет логику сроков действия от системного времени.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
