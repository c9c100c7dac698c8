// Package clock abstrae el tiempo para poder testear timers sin dormir.
// Producción usa Real(); los tests usan Fake() y avanzan el reloj a mano.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// AfterFunc llama f después de d. Con Fake, f corre sincrónicamente dentro de Advance.
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Stop devuelve false si el timer ya disparó o ya estaba parado.
	Stop() bool
}

type realClock struct{}

func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
