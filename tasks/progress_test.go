package tasks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Reports(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 2)

	tracker.Start()
	tracker.Increment(1)
	assert.Empty(t, buf.String(), "below the report interval")

	tracker.Increment(1)
	assert.Contains(t, buf.String(), "2/4 files (50.0%)")

	tracker.Increment(2)
	tracker.Finish()
	assert.Contains(t, buf.String(), "4/4 files (100.0%)")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestProgressTracker_FinishKeepsPartialCount(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 5)

	tracker.Start()
	tracker.Increment(3)
	tracker.Finish()

	assert.Contains(t, buf.String(), "3/10 files")
	assert.Equal(t, 3, tracker.Done())
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 2, 1)

	tracker.Start()
	tracker.Increment(5)
	assert.Equal(t, 2, tracker.Done())
}

func TestProgressTracker_IgnoresUpdatesBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 2, 0)

	tracker.Increment(1)
	tracker.Finish()
	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}
