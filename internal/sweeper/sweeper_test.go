package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"
	"media-access/internal/platform/clock"
	"media-access/internal/platform/logger"
	"media-access/internal/ports/notify"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

type grantList struct {
	items []accessgrants.Grant
	err   error
}

func (l *grantList) ExpiredBetween(ctx context.Context, from, to time.Time) ([]accessgrants.Grant, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []accessgrants.Grant
	for _, g := range l.items {
		if g.ExpiresAt != nil && g.ExpiresAt.After(from) && !g.ExpiresAt.After(to) {
			out = append(out, g)
		}
	}
	return out, nil
}

type shareList struct{ items []shares.Share }

func (l *shareList) ExpiredBetween(ctx context.Context, from, to time.Time) ([]shares.Share, error) {
	var out []shares.Share
	for _, s := range l.items {
		if s.ExpiresAt != nil && s.ExpiresAt.After(from) && !s.ExpiresAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(ctx context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func at(d time.Duration) *time.Time {
	t := t0.Add(d)
	return &t
}

func TestRunOnce_NotifiesEachExpiryOnce(t *testing.T) {
	clk := clock.Fake(t0)
	grants := &grantList{items: []accessgrants.Grant{
		{ID: "g-5m", OwnerID: "owner-1", ViewerID: "viewer-1", ExpiresAt: at(5 * time.Minute)},
		{ID: "g-1h", OwnerID: "owner-1", ViewerID: "viewer-2", ExpiresAt: at(time.Hour)},
		{ID: "g-always", OwnerID: "owner-1", ViewerID: "viewer-3"},
	}}
	shareSrc := &shareList{items: []shares.Share{
		{ID: "s-1", SenderID: "owner-1", TargetID: "viewer-1", ExpiresAt: at(5 * time.Minute)},
	}}
	rec := &recorder{}

	sw, err := New(grants, shareSrc, rec, Options{Clock: clk})
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	n, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, notify.TopicAccessGrants, events[0].Topic)
	assert.Equal(t, notify.TypeExpired, events[0].Type)
	assert.Equal(t, "g-5m", events[0].RecordID)
	assert.Equal(t, notify.TopicShares, events[1].Topic)
	assert.Equal(t, "owner-1", events[1].OwnerID)
	assert.Equal(t, "viewer-1", events[1].ViewerID)

	// la misma ventana no se vuelve a notificar
	n, err = sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clk.Advance(time.Hour)
	n, err = sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "g-1h", rec.all()[2].RecordID)
}

func TestRunOnce_FailureKeepsWindow(t *testing.T) {
	clk := clock.Fake(t0)
	grants := &grantList{
		items: []accessgrants.Grant{{ID: "g-1", OwnerID: "o", ViewerID: "v", ExpiresAt: at(time.Minute)}},
		err:   errors.New("db down"),
	}
	rec := &recorder{}
	sw, err := New(grants, nil, rec, Options{Clock: clk})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = sw.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, rec.all())

	grants.err = nil
	clk.Advance(time.Minute)
	n, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(nil, nil, nil, Options{Schedule: "every minute please"})
	assert.Error(t, err)

	assert.NoError(t, ParseSchedule("*/5 * * * *"))
	assert.NoError(t, ParseSchedule("@every 30s"))
}

func TestStart_StopsWithContext(t *testing.T) {
	sw, err := New(&grantList{}, &shareList{}, nil, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sw.Start(ctx))
	cancel()
	sw.Stop()
}

type logLine struct {
	level  string
	msg    string
	fields map[string]any
}

type recordingLogger struct {
	mu    *sync.Mutex
	lines *[]logLine
	base  map[string]any
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{mu: &sync.Mutex{}, lines: &[]logLine{}, base: map[string]any{}}
}

func (l recordingLogger) With(fields map[string]any) logger.Logger {
	merged := map[string]any{}
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return recordingLogger{mu: l.mu, lines: l.lines, base: merged}
}

func (l recordingLogger) add(level, msg string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := map[string]any{}
	for k, v := range l.base {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	*l.lines = append(*l.lines, logLine{level: level, msg: msg, fields: all})
}

func (l recordingLogger) Debug(msg string, f map[string]any) { l.add("debug", msg, f) }
func (l recordingLogger) Info(msg string, f map[string]any)  { l.add("info", msg, f) }
func (l recordingLogger) Warn(msg string, f map[string]any)  { l.add("warn", msg, f) }
func (l recordingLogger) Error(msg string, f map[string]any) { l.add("error", msg, f) }

func (l recordingLogger) snapshot() []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logLine(nil), *l.lines...)
}

func TestCronLogger_RoutesThroughServiceLogger(t *testing.T) {
	rec := newRecordingLogger()
	s, err := New(nil, nil, nil, Options{Schedule: "@every 1m", Logger: rec})
	require.NoError(t, err)

	// la cadena del cron usa el mismo adapter: un job que se solapa loguea "skip"
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	job := cron.NewChain(cron.SkipIfStillRunning(s.cronLog)).Then(cron.FuncJob(func() {
		started <- struct{}{}
		<-release
	}))
	go job.Run()
	<-started
	job.Run() // se saltea
	close(release)

	s.cronLog.Error(errors.New("boom"), "panic", "job", "sweep")

	lines := rec.snapshot()
	require.Len(t, lines, 2)
	assert.Equal(t, "debug", lines[0].level)
	assert.Equal(t, "cron: skip", lines[0].msg)
	assert.Equal(t, "error", lines[1].level)
	assert.Equal(t, "boom", lines[1].fields["err"])
	assert.Equal(t, "sweep", lines[1].fields["job"])
	for _, l := range lines {
		assert.Equal(t, "sweeper", l.fields["component"])
	}
}

func TestKVFields_OddCount(t *testing.T) {
	f := kvFields([]any{"a", 1, "dangling"})
	assert.Equal(t, 1, f["a"])
	assert.Equal(t, "dangling", f["extra"])
}
