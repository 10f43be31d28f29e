package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog/log"
)

// IntervaloReconexion is the fixed wait between dial attempts.
const IntervaloReconexion = 3 * time.Second

// ConexionConfig configures the single push connection of a terminal.
type ConexionConfig struct {
	URL        string // ws://host/v1/eventos
	Token      string
	SucursalID string
	Intervalo  time.Duration
	// Silencio is how long the connection may go without a message or a
	// ping before it is considered dead. The hub pings every pingPeriodo.
	Silencio time.Duration
}

// Conexion is the one long-lived event connection per process. Everything it
// receives goes to the Bus.
type Conexion struct {
	cfg       ConexionConfig
	bus       *Bus
	dialer    *websocket.Dialer
	conectada atomic.Bool
}

func NewConexion(cfg ConexionConfig, bus *Bus) *Conexion {
	if cfg.Intervalo <= 0 {
		cfg.Intervalo = IntervaloReconexion
	}
	if cfg.Silencio <= 0 {
		cfg.Silencio = pongTimeout
	}
	return &Conexion{
		cfg: cfg,
		bus: bus,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (c *Conexion) Conectada() bool { return c.conectada.Load() }

// Ejecutar dials, reads and re-dials until ctx is cancelled. After every
// successful dial except the very first one it dispatches a Reconexion event.
func (c *Conexion) Ejecutar(ctx context.Context) error {
	destino, err := c.destino()
	if err != nil {
		return err
	}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	primera := true
	for {
		conn, _, err := c.dialer.DialContext(ctx, destino, header)
		if err == nil {
			if !primera {
				log.Info().Str("url", c.cfg.URL).Msg("realtime: reconectado")
				c.bus.Despachar(Evento{Tipo: Reconexion, SucursalID: c.cfg.SucursalID, Fecha: time.Now()})
			}
			c.conectada.Store(true)
			err = c.leer(ctx, conn)
			c.conectada.Store(false)
		}
		primera = false

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Dur("reintento", c.cfg.Intervalo).Msg("realtime: conexión perdida")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.Intervalo):
		}
	}
}

func (c *Conexion) leer(ctx context.Context, conn *websocket.Conn) error {
	cerrada := make(chan struct{})
	defer close(cerrada)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-cerrada:
		}
	}()
	defer conn.Close()

	extender := func() error { return conn.SetReadDeadline(time.Now().Add(c.cfg.Silencio)) }
	if err := extender(); err != nil {
		return err
	}
	conn.SetPingHandler(func(data string) error {
		if err := extender(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(escrituraTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := extender(); err != nil {
			return err
		}
		e, err := Decodificar(data)
		if err != nil {
			log.Warn().Err(err).Msg("realtime: mensaje descartado")
			continue
		}
		c.bus.Despachar(e)
	}
}

func (c *Conexion) destino() (string, error) {
	if c.cfg.URL == "" {
		return "", errors.New("realtime: URL de eventos vacía")
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", err
	}
	if c.cfg.SucursalID != "" {
		q := u.Query()
		q.Set("sucursal_id", c.cfg.SucursalID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
