package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextFireTime_LaterTodayIfNotYetPassed(t *testing.T) {
	now := time.Date(2026, 7, 31, 4, 0, 0, 0, time.UTC)
	next := nextFireTime(now, 6, 0)
	assert.Equal(t, time.Date(2026, 7, 31, 6, 0, 0, 0, time.UTC), next)
}

func TestNextFireTime_TomorrowIfAlreadyPassed(t *testing.T) {
	now := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)
	next := nextFireTime(now, 6, 0)
	assert.Equal(t, time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC), next)
}

func TestNextFireTime_ExactlyAtFireTimeRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 7, 31, 6, 0, 0, 0, time.UTC)
	next := nextFireTime(now, 6, 0)
	assert.Equal(t, time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC), next)
}
