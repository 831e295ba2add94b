package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle(t *testing.T) {
	th := newThrottle(25 * time.Second)

	_, ok := th.reserve("pve", 100_000)
	assert.True(t, ok, "first sample is never throttled")

	_, ok = th.reserve("pve", 124_999)
	assert.False(t, ok)

	_, ok = th.reserve("nas", 124_999)
	assert.True(t, ok, "nodes throttle independently")

	prev, ok := th.reserve("pve", 125_000)
	assert.True(t, ok)
	assert.Equal(t, int64(100_000), prev)
}

func TestThrottle_Release(t *testing.T) {
	th := newThrottle(25 * time.Second)

	prev, ok := th.reserve("pve", 100_000)
	assert.True(t, ok)
	th.release("pve", 100_000, prev)

	_, ok = th.reserve("pve", 100_001)
	assert.True(t, ok, "a failed first write must not throttle the retry")

	prev, ok = th.reserve("pve", 130_000)
	assert.True(t, ok)
	th.release("pve", 130_000, prev)

	_, ok = th.reserve("pve", 130_001)
	assert.True(t, ok, "released slot falls back to the previous sample time")

	_, ok = th.reserve("pve", 130_002)
	assert.False(t, ok)
}
