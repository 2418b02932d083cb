package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SumantSagar73/certify/server/pkg/auth"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth map[string]string

func (s staticAuth) Authenticate(_ context.Context, token string) (*auth.AccessDetails, error) {
	if uid, ok := s[token]; ok {
		return &auth.AccessDetails{UserID: uid}, nil
	}
	return nil, errors.New("unauthorized")
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime?token=" + token
	return websocket.DefaultDialer.Dial(u, nil)
}

func TestWebsocketForwardsOwnEventsOnly(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewServer(0, NewWebsocketHandler(hub, staticAuth{"tok": "u1"}, nil)).Handler())
	defer srv.Close()

	conn, _, err := dial(t, srv, "tok")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("certificates") == 1 }, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, models.ChangeEvent{
		Type: models.EventInsert, Table: "certificates",
		New: &models.Certificate{ID: "other", UserID: "u2"},
	}))
	require.NoError(t, hub.Publish(ctx, models.ChangeEvent{
		Type: models.EventInsert, Table: "certificates",
		New: &models.Certificate{ID: "mine", UserID: "u1"},
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt models.ChangeEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "mine", evt.New.ID)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewServer(0, NewWebsocketHandler(hub, staticAuth{}, nil)).Handler())
	defer srv.Close()

	_, resp, err := dial(t, srv, "nope")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketUnsubscribesOnClose(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewServer(0, NewWebsocketHandler(hub, staticAuth{"tok": "u1"}, nil)).Handler())
	defer srv.Close()

	conn, _, err := dial(t, srv, "tok")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Subscribers("certificates") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("certificates") == 0 }, 2*time.Second, 10*time.Millisecond)
}
