// Package sweeper avisa por realtime cuando un grant o un share vence.
// Nunca escribe en el store: el vencimiento se deriva de expires_at en lectura,
// acá solo se notifica a los dos participantes para que vuelvan a resolver.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"
	"media-access/internal/platform/clock"
	"media-access/internal/platform/logger"
	"media-access/internal/ports/notify"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 1m"

type GrantSource interface {
	ExpiredBetween(ctx context.Context, from, to time.Time) ([]accessgrants.Grant, error)
}

type ShareSource interface {
	ExpiredBetween(ctx context.Context, from, to time.Time) ([]shares.Share, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule valida una expresión de 5 campos o un descriptor (@every 1m, @hourly).
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

type Sweeper struct {
	grants   GrantSource
	shares   ShareSource
	notifier notify.Notifier
	clock    clock.Clock
	log      logger.Logger
	schedule string

	mu      sync.Mutex
	lastRun time.Time

	cron     *cron.Cron
	cronLog  cronLogger
	stopOnce sync.Once
}

type Options struct {
	Schedule string
	Clock    clock.Clock
	Logger   logger.Logger
}

func New(grants GrantSource, shareSrc ShareSource, notifier notify.Notifier, opts Options) (*Sweeper, error) {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if err := ParseSchedule(opts.Schedule); err != nil {
		return nil, fmt.Errorf("sweeper: invalid schedule %q: %w", opts.Schedule, err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if notifier == nil {
		notifier = notify.Nop()
	}

	cronLog := cronLogger{log: opts.Logger.With(map[string]any{"component": "sweeper"})}
	return &Sweeper{
		grants:   grants,
		shares:   shareSrc,
		notifier: notifier,
		clock:    opts.Clock,
		log:      opts.Logger,
		schedule: opts.Schedule,
		// arranca desde ahora: lo vencido antes del boot no se re-notifica
		lastRun: opts.Clock.Now(),
		cronLog: cronLog,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
		),
	}, nil
}

// RunOnce notifica lo vencido en (lastRun, now]. Si algo falla no avanza lastRun,
// así la próxima corrida cubre la ventana otra vez.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to := s.lastRun, s.clock.Now()
	if !to.After(from) {
		return 0, nil
	}

	var grants []accessgrants.Grant
	if s.grants != nil {
		var err error
		if grants, err = s.grants.ExpiredBetween(ctx, from, to); err != nil {
			return 0, fmt.Errorf("sweeper: list expired grants: %w", err)
		}
	}
	var expiredShares []shares.Share
	if s.shares != nil {
		var err error
		if expiredShares, err = s.shares.ExpiredBetween(ctx, from, to); err != nil {
			return 0, fmt.Errorf("sweeper: list expired shares: %w", err)
		}
	}

	for _, g := range grants {
		s.notifier.Notify(ctx, notify.Event{
			Topic:    notify.TopicAccessGrants,
			Type:     notify.TypeExpired,
			OwnerID:  g.OwnerID,
			ViewerID: g.ViewerID,
			RecordID: g.ID,
			At:       *g.ExpiresAt,
		})
	}
	for _, sh := range expiredShares {
		s.notifier.Notify(ctx, notify.Event{
			Topic:    notify.TopicShares,
			Type:     notify.TypeExpired,
			OwnerID:  sh.SenderID,
			ViewerID: sh.TargetID,
			RecordID: sh.ID,
			At:       *sh.ExpiresAt,
		})
	}

	s.lastRun = to
	return len(grants) + len(expiredShares), nil
}

// Start registra el job y arranca el cron; se detiene con ctx o con Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		n, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Warn("sweeper: run failed", map[string]any{"err": err.Error()})
			return
		}
		if n > 0 {
			s.log.Info("sweeper: expiry notifications sent", map[string]any{"count": n})
		}
	}); err != nil {
		return fmt.Errorf("sweeper: add job: %w", err)
	}

	s.cron.Start()
	s.log.Info("sweeper started", map[string]any{"schedule": s.schedule})

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop espera a que termine la corrida en curso. Se puede llamar más de una vez.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
	})
}

// cronLogger adapta logger.Logger a cron.Logger. Los Info de cron (start, wake, skip)
// van a debug, igual que cron.DefaultLogger que los descarta.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := kvFields(keysAndValues)
	if err != nil {
		fields["err"] = err.Error()
	}
	c.log.Error("cron: "+msg, fields)
}

func kvFields(kv []any) map[string]any {
	fields := make(map[string]any, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	if len(kv)%2 == 1 {
		fields["extra"] = kv[len(kv)-1]
	}
	return fields
}
