package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStubClock_Advance(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewStubClock(start)

	assert.Equal(t, start, c.Now())
	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestRealClock_UTC(t *testing.T) {
	assert.Equal(t, time.UTC, New().Now().Location())
}
