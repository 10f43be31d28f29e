package sesion

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Hint is the only session data that survives a restart. It is never trusted
// without asking the backend.
type Hint struct {
	CajaID     string `json:"caja_id"`
	CajaNombre string `json:"caja_nombre"`
}

type HintStore interface {
	Cargar() (Hint, bool, error)
	Guardar(h Hint) error
	Borrar() error
}

// ArchivoHints keeps the hint in a small JSON file.
type ArchivoHints struct {
	mu   sync.Mutex
	ruta string
}

func NewArchivoHints(ruta string) *ArchivoHints {
	return &ArchivoHints{ruta: ruta}
}

func (a *ArchivoHints) Cargar() (Hint, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.ruta)
	if errors.Is(err, os.ErrNotExist) {
		return Hint{}, false, nil
	}
	if err != nil {
		return Hint{}, false, err
	}
	var h Hint
	if err := json.Unmarshal(data, &h); err != nil {
		return Hint{}, false, fmt.Errorf("hint ilegible: %w", err)
	}
	if h.CajaID == "" {
		return Hint{}, false, nil
	}
	return h, true, nil
}

// Guardar writes through a temp file so a crash never leaves half a hint.
func (a *ArchivoHints) Guardar(h Hint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(a.ruta); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := a.ruta + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, a.ruta)
}

func (a *ArchivoHints) Borrar() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.Remove(a.ruta); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
