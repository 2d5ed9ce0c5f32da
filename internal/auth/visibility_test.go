package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldSuppressWithinWindow(t *testing.T) {
	clock := newFakeClock()
	tracker := NewVisibilityTracker(clock.Now)

	tracker.HandleChange(true)
	assert.True(t, tracker.ShouldSuppress(5*time.Second))

	clock.Advance(3 * time.Second)
	assert.True(t, tracker.ShouldSuppress(5*time.Second))

	clock.Advance(3 * time.Second)
	assert.False(t, tracker.ShouldSuppress(5*time.Second))
}

func TestShouldSuppressBeforeAnyTransition(t *testing.T) {
	tracker := NewVisibilityTracker(newFakeClock().Now)
	assert.False(t, tracker.ShouldSuppress(5*time.Second))
}

func TestBackgroundTransitionDoesNotArmWindow(t *testing.T) {
	clock := newFakeClock()
	tracker := NewVisibilityTracker(clock.Now)

	tracker.HandleChange(false)
	assert.False(t, tracker.ShouldSuppress(5*time.Second))
}

func TestZeroWindowNeverSuppresses(t *testing.T) {
	clock := newFakeClock()
	tracker := NewVisibilityTracker(clock.Now)
	tracker.HandleChange(true)
	assert.False(t, tracker.ShouldSuppress(0))
}

func TestHandlersObserveEveryTransition(t *testing.T) {
	clock := newFakeClock()
	tracker := NewVisibilityTracker(clock.Now)

	var seen []bool
	tracker.OnVisibilityChange(func(visible bool, _ time.Time) {
		seen = append(seen, visible)
	})

	tracker.HandleChange(true)
	tracker.HandleChange(false)
	tracker.HandleChange(true)
	assert.Equal(t, []bool{true, false, true}, seen)
}
