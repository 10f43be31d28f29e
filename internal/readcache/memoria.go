package readcache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type entrada struct {
	data   []byte
	expira time.Time
}

// Memoria is the in-process Almacen used when the terminal runs without Redis.
type Memoria struct {
	mu       sync.Mutex
	ttl      time.Duration
	ahora    func() time.Time
	entradas map[string]entrada
}

func NewMemoria(ttl time.Duration) *Memoria {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Memoria{ttl: ttl, ahora: time.Now, entradas: make(map[string]entrada)}
}

func (m *Memoria) Obtener(_ context.Context, clave string, dest any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entradas[clave]
	if ok && m.ahora().After(e.expira) {
		delete(m.entradas, clave)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dest)
}

func (m *Memoria) Guardar(_ context.Context, clave string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entradas[clave] = entrada{data: data, expira: m.ahora().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memoria) InvalidarStock(_ context.Context, sucursalID string) error {
	m.borrarPrefijo(ClaveStock(sucursalID))
	return nil
}

func (m *Memoria) InvalidarResumenCaja(_ context.Context, cajaID string) error {
	m.borrarPrefijo(patronCaja(cajaID))
	return nil
}

func (m *Memoria) InvalidarCajas(context.Context) error {
	m.borrarPrefijo(prefijoCajas)
	return nil
}

func (m *Memoria) borrarPrefijo(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entradas {
		if strings.HasPrefix(k, p) {
			delete(m.entradas, k)
		}
	}
}
