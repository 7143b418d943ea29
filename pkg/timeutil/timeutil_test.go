package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateFormatter_Today(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 22:30 UTC on the 16th is already the 17th at UTC+5.
	clock := FixedClock(time.Date(2026, 10, 16, 22, 30, 0, 0, time.UTC))

	f := NewDateFormatter(loc, "", clock)
	assert.Equal(t, "10/17/2026", f.Today())
}

func TestDateFormatter_CustomLayout(t *testing.T) {
	f := NewDateFormatter(time.UTC, "2006-01-02", FixedClock(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-04", f.Today())
}

func TestLoadLocation_Fallback(t *testing.T) {
	assert.Equal(t, time.Local, LoadLocation(""))
	assert.Equal(t, time.Local, LoadLocation("Not/AZone"))
	assert.Equal(t, "UTC", LoadLocation("UTC").String())
}
