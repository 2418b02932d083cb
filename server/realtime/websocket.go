package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/SumantSagar73/certify/server/config"
	"github.com/SumantSagar73/certify/server/pkg/auth"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout  = time.Second
	pingInterval  = 25 * time.Second
	sendQueueSize = 64
	readLimit     = 4096
)

// Authenticator resolves an access token to its owner.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.AccessDetails, error)
}

type WebsocketHandler struct {
	hub     *Hub
	auth    Authenticator
	upgrade *websocket.Upgrader
}

func NewWebsocketHandler(hub *Hub, a Authenticator, checkOrigin func(r *http.Request) bool) *WebsocketHandler {
	upgrade := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		Subprotocols:    []string{"json"},
	}
	if checkOrigin != nil {
		upgrade.CheckOrigin = checkOrigin
	}
	return &WebsocketHandler{hub: hub, auth: a, upgrade: upgrade}
}

func bearer(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

func (s *WebsocketHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	acc, err := s.auth.Authenticate(r.Context(), bearer(r))
	if err != nil {
		http.Error(rw, `{"err":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	table := r.URL.Query().Get("table")
	if table == "" {
		table = config.CertificatesTB
	}

	conn, err := s.upgrade.Upgrade(rw, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade error")
		return
	}
	conn.SetReadLimit(readLimit)

	send := make(chan []byte, sendQueueSize)
	done := make(chan struct{})
	overflow := make(chan struct{}, 1)

	unsubscribe := s.hub.Subscribe(table, func(evt models.ChangeEvent) {
		if evt.OwnerID() != acc.UserID {
			return
		}
		b, err := json.Marshal(evt)
		if err != nil {
			log.Error().Err(err).Msg("encode change event")
			return
		}
		select {
		case send <- b:
		case <-done:
		default:
			select {
			case overflow <- struct{}{}:
			default:
			}
		}
	})

	log.Debug().Str("user", acc.UserID).Str("table", table).Msg("realtime client connected")
	go s.writeLoop(conn, send, done, overflow)

	// Reads only serve to notice the peer going away.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	unsubscribe()
	close(done)
	log.Debug().Str("user", acc.UserID).Msg("realtime client disconnected")
}

func (s *WebsocketHandler) writeLoop(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}, overflow <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case b := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-overflow:
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "slow consumer")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			return
		case <-done:
			return
		}
	}
}
