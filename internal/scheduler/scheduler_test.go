package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBoundary_MidInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 7, 33, 0, time.UTC)
	next := NextBoundary(now, 15*time.Minute)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC), next)
}

func TestNextBoundary_ExactlyOnBoundary(t *testing.T) {
	// 恰好在边界上必须返回下一个边界，同一边界不触发两次
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	next := NextBoundary(now, 15*time.Minute)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 45, 0, 0, time.UTC), next)
}

func TestNextBoundary_CrossesHour(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 52, 10, 0, time.UTC)
	next := NextBoundary(now, 15*time.Minute)
	assert.Equal(t, time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), next)
}

func TestNextBoundary_SubMinutePrecision(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 14, 59, 999_000_000, time.UTC)
	next := NextBoundary(now, 15*time.Minute)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC), next)
}
