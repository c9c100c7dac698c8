package countdown

import (
	"sync"
	"testing"
	"time"

	"media-access/internal/platform/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func at(d time.Duration) *time.Time {
	t := epoch.Add(d)
	return &t
}

func TestPresenter_FiveSecondsToExpired(t *testing.T) {
	c := clock.Fake(epoch)
	rec := &recorder{}

	p := Start(c, at(5*time.Second), rec.record)
	defer p.Stop()

	for i := 0; i < 5; i++ {
		c.Advance(time.Second)
	}

	got := rec.snapshot()
	require.Len(t, got, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, PhaseActive, got[i].Phase)
		assert.Equal(t, time.Duration(5-i)*time.Second, got[i].Remaining)
	}
	assert.Equal(t, PhaseExpired, got[5].Phase)
	assert.Equal(t, PhaseExpired, p.Snapshot().Phase)
	assert.Equal(t, 0, c.PendingCount(), "expired presenter must not keep a timer")
}

func TestPresenter_StopAfterTwoSeconds(t *testing.T) {
	c := clock.Fake(epoch)
	rec := &recorder{}

	p := Start(c, at(5*time.Second), rec.record)
	c.Advance(time.Second)
	c.Advance(time.Second)
	p.Stop()

	before := len(rec.snapshot())
	c.Advance(10 * time.Second)

	assert.Equal(t, before, len(rec.snapshot()), "no ticks after stop")
	assert.Equal(t, PhaseActive, p.Snapshot().Phase)
	assert.Equal(t, 3*time.Second, p.Snapshot().Remaining)
	assert.Equal(t, 0, c.PendingCount())

	p.Stop()
}

func TestPresenter_SingleLargeAdvanceStillTicksEachSecond(t *testing.T) {
	c := clock.Fake(epoch)
	rec := &recorder{}

	Start(c, at(3*time.Second), rec.record)
	c.Advance(time.Minute)

	got := rec.snapshot()
	require.Len(t, got, 4)
	assert.Equal(t, PhaseExpired, got[3].Phase)
}

func TestPresenter_PermanentNeverTicks(t *testing.T) {
	c := clock.Fake(epoch)
	rec := &recorder{}

	p := Start(c, nil, rec.record)
	c.Advance(time.Hour)

	assert.Equal(t, []State{{Phase: PhasePermanent}}, rec.snapshot())
	assert.Equal(t, 0, c.PendingCount())
	p.Stop()
}

func TestPresenter_AlreadyExpired(t *testing.T) {
	c := clock.Fake(epoch)
	rec := &recorder{}

	Start(c, at(-time.Second), rec.record)

	assert.Equal(t, []State{{Phase: PhaseExpired}}, rec.snapshot())
	assert.Equal(t, 0, c.PendingCount())
}

func TestPresenter_RetargetReleasesOldTimer(t *testing.T) {
	c := clock.Fake(epoch)
	rec := &recorder{}

	p := Start(c, at(5*time.Second), rec.record)
	c.Advance(time.Second)
	p.Retarget(at(time.Hour))

	assert.Equal(t, 1, c.PendingCount(), "only the new target's timer remains")
	assert.Equal(t, time.Hour-time.Second, p.Snapshot().Remaining)

	c.Advance(10 * time.Second)
	assert.Equal(t, PhaseActive, p.Snapshot().Phase)
	assert.Equal(t, time.Hour-11*time.Second, p.Snapshot().Remaining)
	p.Stop()
}

func TestPresenter_FractionalRemainingExpiresOnTime(t *testing.T) {
	c := clock.Fake(epoch)
	rec := &recorder{}

	Start(c, at(1500*time.Millisecond), rec.record)
	c.Advance(time.Second)
	assert.Equal(t, PhaseActive, rec.snapshot()[1].Phase)

	c.Advance(500 * time.Millisecond)
	got := rec.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, PhaseExpired, got[2].Phase)
}
