package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mayankSinghx/QuickShow/internal/ratelimit"
	"github.com/mayankSinghx/QuickShow/internal/room"
)

type Config struct {
	MessagesPerSecond float64
	MessageBurst      int
	CheckOrigin       func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		MessagesPerSecond: 100,
		MessageBurst:      200,
		CheckOrigin:       func(r *http.Request) bool { return true },
	}
}

// Gateway upgrades connections and maps each one onto a session that
// routes its messages to the owning room authority.
type Gateway struct {
	registry *room.Registry
	limiters *ratelimit.SessionLimiters
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewGateway(registry *room.Registry, cfg Config, log zerolog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		limiters: ratelimit.NewSessionLimiters(cfg.MessagesPerSecond, cfg.MessageBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		log: log,
	}
}

func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(g, conn)
	g.log.Debug().Str("session", client.sessionID).Str("remote", conn.RemoteAddr().String()).Msg("connection opened")

	go client.writePump()
	go client.readPump()
}
