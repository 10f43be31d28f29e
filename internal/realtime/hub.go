package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog/log"
)

const (
	escrituraTimeout = 10 * time.Second
	pongTimeout      = 60 * time.Second
	pingPeriodo      = (pongTimeout * 9) / 10
	bufferCliente    = 32
)

// Publicador is what services use to announce a committed change.
type Publicador interface {
	Publicar(ctx context.Context, e Evento) error
}

type cliente struct {
	conn       *websocket.Conn
	sucursalID string
	enviar     chan []byte
}

// Hub keeps the websocket clients of this backend instance and broadcasts
// every event to the clients of the same sucursal.
type Hub struct {
	mu         sync.Mutex
	clientes   map[*cliente]bool
	register   chan *cliente
	unregister chan *cliente
	broadcast  chan Evento
}

func NewHub() *Hub {
	return &Hub{
		clientes:   make(map[*cliente]bool),
		register:   make(chan *cliente),
		unregister: make(chan *cliente),
		broadcast:  make(chan Evento, 64),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clientes {
				close(c.enviar)
				delete(h.clientes, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clientes[c] = true
			h.mu.Unlock()
			log.Debug().Str("sucursal_id", c.sucursalID).Msg("realtime: cliente conectado")

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clientes[c] {
				delete(h.clientes, c)
				close(c.enviar)
			}
			h.mu.Unlock()

		case e := <-h.broadcast:
			data, err := json.Marshal(e)
			if err != nil {
				log.Error().Err(err).Msg("realtime: marshal evento")
				continue
			}
			h.mu.Lock()
			for c := range h.clientes {
				if c.sucursalID != e.SucursalID {
					continue
				}
				select {
				case c.enviar <- data:
				default:
					// slow client, it re-syncs on reconnect
					delete(h.clientes, c)
					close(c.enviar)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publicar queues e for broadcast. The Hub is the Publicador of a single
// instance deployment; with Redis, RedisPublicador feeds it through Reenviar.
func (h *Hub) Publicar(ctx context.Context, e Evento) error {
	if e.Fecha.IsZero() {
		e.Fecha = time.Now()
	}
	select {
	case h.broadcast <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clientes returns how many websockets are attached.
func (h *Hub) Clientes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clientes)
}

// Atender serves one upgraded connection and blocks until it closes.
// Terminals never send data; reads only keep the pong deadline alive.
func (h *Hub) Atender(ctx context.Context, conn *websocket.Conn, sucursalID string) {
	c := &cliente{conn: conn, sucursalID: sucursalID, enviar: make(chan []byte, bufferCliente)}
	select {
	case h.register <- c:
	case <-ctx.Done():
		_ = conn.Close()
		return
	}

	go escribir(c)

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- c:
	case <-ctx.Done():
	}
}

func escribir(c *cliente) {
	ticker := time.NewTicker(pingPeriodo)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.enviar:
			_ = c.conn.SetWriteDeadline(time.Now().Add(escrituraTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(escrituraTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
