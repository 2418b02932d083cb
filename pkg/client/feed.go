package client

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/SumantSagar73/certify/pkg/cbqueue"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/gorilla/websocket"
)

const slowDispatch = time.Second

// Subscribe follows the change feed for table until the returned func is
// called. Dropped connections are re-dialled with backoff. fn runs on its own
// goroutine in arrival order, so a slow handler never stalls the socket.
func (c *Client) Subscribe(ctx context.Context, table string, fn func(models.ChangeEvent)) (func(), error) {
	if c.realtime == "" {
		return nil, errors.New("client: realtime url not configured")
	}
	if !c.session.SignedIn() {
		return nil, ErrNotSignedIn
	}
	ctx, cancel := context.WithCancel(ctx)

	var (
		mu   sync.Mutex
		conn *websocket.Conn
		wg   sync.WaitGroup
	)
	queue := cbqueue.New()
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Dispatch()
	}()
	setConn := func(cn *websocket.Conn) {
		mu.Lock()
		conn = cn
		if cn != nil && ctx.Err() != nil {
			cn.Close()
		}
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer queue.Close()
		attempt := 0
		for ctx.Err() == nil {
			cn, err := c.dialFeed(ctx, table)
			if err != nil {
				c.log.WithError(err).Debug("realtime dial failed")
				if !sleepCtx(ctx, c.reconnect.timeBeforeNextAttempt(attempt)) {
					return
				}
				attempt++
				continue
			}
			attempt = 0
			setConn(cn)
			for {
				var evt models.ChangeEvent
				if err := cn.ReadJSON(&evt); err != nil {
					if ctx.Err() == nil {
						c.log.WithError(err).Warn("realtime connection lost")
					}
					break
				}
				queue.Push(func(lag time.Duration) {
					if lag > slowDispatch {
						c.log.WithField("lag", lag).Debug("realtime handler falling behind")
					}
					fn(evt)
				})
			}
			cn.Close()
			setConn(nil)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			mu.Lock()
			if conn != nil {
				conn.Close()
			}
			mu.Unlock()
			queue.Close()
			wg.Wait()
		})
	}, nil
}

func (c *Client) dialFeed(ctx context.Context, table string) (*websocket.Conn, error) {
	u, err := url.Parse(c.realtime + "/realtime")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("table", table)
	q.Set("token", c.session.Current())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
