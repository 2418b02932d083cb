package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SumantSagar73/certify/pkg/client"
	"github.com/SumantSagar73/certify/pkg/dashboard"
	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/pkg/prefs"
	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/sirupsen/logrus"
)

// clientEnv is what every client command works with: local preferences,
// the persisted session and an API client.
type clientEnv struct {
	log    *logrus.Entry
	prefs  *prefs.Store
	client *client.Client
}

func openClient(ctx context.Context) (*clientEnv, error) {
	p, err := prefs.Open(conf.Client.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	holder := client.NewSessionHolder(p)
	if err := holder.Load(ctx); err != nil {
		p.Close()
		return nil, err
	}
	log := logger.InitLogger(conf.LogLevel, "client")
	return &clientEnv{
		log:   log,
		prefs: p,
		client: client.New(client.Config{
			BaseURL:     conf.Client.ServerURL,
			RealtimeURL: conf.Client.RealtimeURL,
			Session:     holder,
			Logger:      log,
		}),
	}, nil
}

func (e *clientEnv) Close() {
	if err := e.prefs.Close(); err != nil {
		e.log.WithError(err).Warn("close local state")
	}
}

// session fails with a hint when nobody is signed in.
func (e *clientEnv) session(ctx context.Context) (*auth.Session, error) {
	sess, err := e.client.CurrentSession(ctx)
	if errors.Is(err, client.ErrNotSignedIn) || errors.Is(err, client.ErrUnauthorized) {
		return nil, errors.New("not signed in, run: certify login --email <address>")
	}
	return sess, err
}

// dashboard signs in from the stored session and builds a dashboard for
// that user. Undo windows are handled by the caller.
func (e *clientEnv) dashboard(ctx context.Context) (*dashboard.Dashboard, *auth.Session, error) {
	sess, err := e.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	d := dashboard.New(e.client, dashboard.Options{
		UserID:      sess.User.ID,
		UndoWindow:  time.Hour,
		Workers:     conf.Client.Workers,
		MaxFileSize: conf.Storage.MaxFileSize,
		Logger:      e.log.WithField("component", "dashboard"),
		OnError: func(err error) {
			fmt.Println("error:", err)
		},
	})
	return d, sess, nil
}
