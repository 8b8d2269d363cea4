package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowContainsClosedInterval(t *testing.T) {
	w := Window{
		Since: time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local),
		Until: time.Date(2025, 8, 7, 23, 59, 59, 0, time.Local),
	}

	assert.True(t, w.Contains(w.Since), "lower bound is inclusive")
	assert.True(t, w.Contains(w.Until), "upper bound is inclusive")
	assert.True(t, w.Contains(time.Date(2025, 8, 4, 12, 0, 0, 0, time.Local)))
	assert.False(t, w.Contains(w.Since.Add(-time.Second)))
	assert.False(t, w.Contains(w.Until.Add(time.Second)))
}

func TestNewRunAssignsIdentity(t *testing.T) {
	since := time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local)
	until := time.Date(2025, 8, 7, 0, 0, 0, 0, time.Local)

	a := NewRun("250801-250807", since, until)
	b := NewRun("250801-250807", since, until)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "250801-250807", a.Period)
	assert.False(t, a.CreatedAt.IsZero())
}
