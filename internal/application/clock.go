package application

import "time"

// Clock dipakai buat timestamp diagnosis + ukur durasi analisa,
// interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
