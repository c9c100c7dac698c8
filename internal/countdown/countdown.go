// Package countdown presenta el tiempo restante de un grant o share.
// Es solo presentación: al llegar a cero pasa a Expired localmente, no revoca
// nada ni vuelve a resolver; eso le toca al caller.
package countdown

import (
	"sync"
	"time"

	"media-access/internal/platform/clock"
)

type Phase string

const (
	PhaseActive    Phase = "active"
	PhaseExpired   Phase = "expired"
	PhasePermanent Phase = "permanent" // expiresAt nil: nunca tickea
)

type State struct {
	Phase     Phase
	Remaining time.Duration
}

const tickInterval = time.Second

// Presenter tickea una vez por segundo mientras el target está vivo.
// Stop libera el timer; es idempotente y se puede llamar desde cualquier goroutine.
type Presenter struct {
	clock    clock.Clock
	onChange func(State)

	mu        sync.Mutex
	expiresAt *time.Time
	timer     clock.Timer
	state     State
	gen       uint64
	stopped   bool
}

// Start arranca el presenter y emite el estado inicial.
func Start(c clock.Clock, expiresAt *time.Time, onChange func(State)) *Presenter {
	if onChange == nil {
		onChange = func(State) {}
	}
	p := &Presenter{clock: c, onChange: onChange}
	p.Retarget(expiresAt)
	return p
}

// Retarget cambia el vencimiento observado: para el timer anterior antes de agendar otro.
func (p *Presenter) Retarget(expiresAt *time.Time) {
	p.mu.Lock()
	p.stopTimerLocked()
	p.gen++
	p.stopped = false
	if expiresAt != nil {
		t := *expiresAt
		p.expiresAt = &t
	} else {
		p.expiresAt = nil
	}
	st := p.evaluateLocked(p.gen)
	p.mu.Unlock()

	p.onChange(st)
}

func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.stopTimerLocked()
}

// Snapshot devuelve el último estado emitido.
func (p *Presenter) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Presenter) tick(gen uint64) {
	p.mu.Lock()
	if p.stopped || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	st := p.evaluateLocked(gen)
	p.mu.Unlock()

	p.onChange(st)
}

// evaluateLocked calcula el estado y, si sigue activo, agenda el próximo tick.
func (p *Presenter) evaluateLocked(gen uint64) State {
	if p.expiresAt == nil {
		p.state = State{Phase: PhasePermanent}
		return p.state
	}

	remaining := p.expiresAt.Sub(p.clock.Now())
	if remaining <= 0 {
		p.state = State{Phase: PhaseExpired}
		return p.state
	}

	p.state = State{Phase: PhaseActive, Remaining: remaining}
	next := tickInterval
	if remaining < next {
		next = remaining
	}
	p.timer = p.clock.AfterFunc(next, func() { p.tick(gen) })
	return p.state
}

func (p *Presenter) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
