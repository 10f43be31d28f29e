package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler receives every dispatched event and filters what it cares about.
type Handler func(Evento)

// Bus fans one event stream out to N handlers. It holds no domain state.
type Bus struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[uint64]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[uint64]Handler)}
}

// Suscripcion is the handle returned by Suscribir.
type Suscripcion struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Cancelar removes the handler. Safe to call more than once.
func (s *Suscripcion) Cancelar() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.handlers, s.id)
		s.bus.mu.Unlock()
	})
}

func (b *Bus) Suscribir(h Handler) *Suscripcion {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.handlers[b.next] = h
	return &Suscripcion{bus: b, id: b.next}
}

// Despachar delivers e to every handler in subscription order. A handler
// that panics is logged and skipped; the rest still receive the event.
func (b *Bus) Despachar(e Evento) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		invocar(h, e)
	}
}

func (b *Bus) Cantidad() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func invocar(h Handler, e Evento) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tipo", string(e.Tipo)).
				Interface("panic", r).
				Msg("realtime: handler panicked")
		}
	}()
	h(e)
}
