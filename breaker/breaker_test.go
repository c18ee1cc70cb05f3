package breaker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(t *testing.T, clock *fakeClock) *Breaker {
	t.Helper()
	b, err := New("test", DefaultConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	return b
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := newTestBreaker(t, newFakeClock())

	assert.True(t, b.CanExecute())
	snap := b.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.FailureCount)
	assert.Nil(t, snap.LastFailure)
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(t, clock)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.Snapshot().State, "still closed after %d failures", i+1)
		assert.True(t, b.CanExecute())
	}

	b.RecordFailure()
	snap := b.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, 5, snap.FailureCount)
	require.NotNil(t, snap.LastFailure)
	assert.Equal(t, clock.Now(), *snap.LastFailure)
	assert.False(t, b.CanExecute(), "open breaker must refuse calls")
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := newTestBreaker(t, newFakeClock())

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	b.RecordFailure()

	snap := b.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 1, snap.FailureCount, "failures must be consecutive")
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(t, clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	clock.Advance(60 * time.Second)
	assert.False(t, b.CanExecute(), "cooldown must strictly elapse")

	clock.Advance(time.Millisecond)
	assert.True(t, b.CanExecute(), "first call after cooldown is the trial")
	assert.Equal(t, StateHalfOpen, b.Snapshot().State)
	assert.False(t, b.CanExecute(), "only one trial per cooldown window")
}

func TestBreaker_TrialSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(t, clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(61 * time.Second)
	require.True(t, b.CanExecute())

	b.RecordSuccess()

	snap := b.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.FailureCount)
	assert.True(t, b.CanExecute())
	assert.True(t, b.CanExecute())
}

func TestBreaker_TrialFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(t, clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(61 * time.Second)
	require.True(t, b.CanExecute())

	b.RecordFailure()

	snap := b.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	require.NotNil(t, snap.LastFailure)
	assert.Equal(t, clock.Now(), *snap.LastFailure, "last failure refreshed")
	assert.False(t, b.CanExecute(), "new cooldown window starts at the trial failure")

	clock.Advance(61 * time.Second)
	assert.True(t, b.CanExecute())
}

func TestBreaker_AbandonReleasesTrial(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(t, clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(61 * time.Second)
	require.True(t, b.CanExecute())
	require.False(t, b.CanExecute())

	b.Abandon()

	assert.Equal(t, StateHalfOpen, b.Snapshot().State)
	assert.True(t, b.CanExecute(), "abandoned trial slot can be granted again")
}

func TestBreaker_ConcurrentTrialGrantedOnce(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(t, clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(61 * time.Second)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.CanExecute() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
}

func TestBreaker_Reset(t *testing.T) {
	b := newTestBreaker(t, newFakeClock())
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	require.False(t, b.CanExecute())

	b.Reset()

	assert.True(t, b.CanExecute())
	assert.Equal(t, StateClosed, b.Snapshot().State)
	assert.Nil(t, b.Snapshot().LastFailure)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: DefaultConfig()},
		{name: "zero threshold", config: Config{FailureThreshold: 0, ResetTimeout: time.Second}, wantErr: true},
		{name: "zero timeout", config: Config{FailureThreshold: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := New("x", Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegistry_SharesBreakerPerBackend(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	a := r.Get("openai")
	assert.Same(t, a, r.Get("openai"))
	assert.NotSame(t, a, r.Get("gemini"))

	a.RecordFailure()
	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "gemini", snaps[0].Name)
	assert.Equal(t, "openai", snaps[1].Name)
	assert.Equal(t, 1, snaps[1].FailureCount)
}

func TestBreaker_LateFailureKeepsCooldown(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(t, clock)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.Snapshot().State)
	openedAt := *b.Snapshot().LastFailure

	// A call that was in flight when the breaker opened fails later.
	clock.Advance(30 * time.Second)
	b.RecordFailure()

	snap := b.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, 6, snap.FailureCount)
	assert.Equal(t, openedAt, *snap.LastFailure)

	clock.Advance(31 * time.Second)
	assert.True(t, b.CanExecute(), "cooldown counts from the opening failure")
	assert.Equal(t, StateHalfOpen, b.Snapshot().State)
}
