package httpserver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/SumantSagar73/certify/pkg/kv"
	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/config"
	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/SumantSagar73/certify/server/httpserver/controllers"
	"github.com/SumantSagar73/certify/server/httpserver/routes"
	"github.com/SumantSagar73/certify/server/messaging"
	pkgauth "github.com/SumantSagar73/certify/server/pkg/auth"
	"github.com/SumantSagar73/certify/server/pkg/redis"
	"github.com/SumantSagar73/certify/server/realtime"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired certify server.
type App struct {
	config   *config.Configs
	log      *logrus.Entry
	store    storage.Store
	kv       kv.Store
	bucket   *blob.Bucket
	hub      *realtime.Hub
	bridge   *messaging.Bridge
	sweeper  *certificates.Sweeper
	http     *HttpServer
	realtime *realtime.Server
}

// KVPath places the token store next to an embedded database file.
func KVPath(dbPath string) string {
	if dbPath == "" || dbPath == ":memory:" {
		return ":memory:"
	}
	ext := filepath.Ext(dbPath)
	return strings.TrimSuffix(dbPath, ext) + ".kv" + ext
}

func openKV(cfg *config.Configs) (kv.Store, error) {
	if cfg.Redis.Host == "" {
		return kv.OpenBunt(KVPath(cfg.DB.Path))
	}
	client := redis.NewRedisDB(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
	if err := redis.Ping(client); err != nil {
		client.Close()
		return nil, err
	}
	return kv.NewRedis(client), nil
}

// NewApp opens every backend the configuration names. Failures here are
// the only fatal ones.
func NewApp(cfg *config.Configs) (*App, error) {
	if cfg.Auth.HmacSecret == "" {
		return nil, errors.New("auth.hmacsecret is required")
	}
	logger.SetGlobalLevel(cfg.LogLevel)
	a := &App{config: cfg, log: logger.InitLogger(cfg.LogLevel, config.CertifyServer)}

	var err error
	a.store, err = storage.Open(storage.Options{
		Driver: cfg.DB.Driver,
		Path:   cfg.DB.Path,
		DSN:    cfg.PostgresDSN(),
		Log:    a.log.WithField("component", "storage"),
	})
	if err != nil {
		return nil, err
	}
	if a.kv, err = openKV(cfg); err != nil {
		a.Close()
		return nil, err
	}
	a.bucket, err = blob.NewOsBucket(cfg.Storage.Root, blob.Options{
		Name:      cfg.Storage.Bucket,
		Public:    cfg.Storage.Public,
		PublicURL: cfg.HTTPServer.PublicURL,
		Signer:    blob.NewSigner(cfg.Auth.HmacSecret),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.hub = realtime.NewHub()
	var publisher realtime.Publisher = a.hub
	if cfg.Nats.URL != "" {
		a.bridge, err = messaging.Connect(&messaging.NatsConfig{
			URL:           cfg.Nats.URL,
			Name:          cfg.Nats.Name,
			Subject:       cfg.Nats.Subject,
			ReconnectWait: cfg.Nats.ReconnectWait,
			MaxReconnects: cfg.Nats.MaxReconnects,
			Logger:        a.log.WithField("component", "nats"),
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		publisher = a.bridge
	}

	service := certificates.NewService(a.store, a.bucket, publisher, certificates.Config{
		MaxFileSize:  cfg.Storage.MaxFileSize,
		SignedURLTTL: cfg.Storage.SignedURLTTL,
		Logger:       a.log.WithField("component", "certificates"),
	})
	tokens := pkgauth.NewTokenManager(cfg.Auth.HmacSecret, cfg.Auth.TokenTTL)
	verifier := auth.NewVerifier(tokens, a.kv)

	var mailer auth.Mailer = &auth.LogMailer{Logger: a.log.WithField("component", "mail")}
	if cfg.Mail.Host != "" {
		mailer = auth.NewSMTPMailer(auth.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}
	sessionSecret := cfg.Auth.SessionSecret
	if sessionSecret == "" {
		sessionSecret = cfg.Auth.HmacSecret
	}
	google := auth.NewGoogle(cfg.Auth.ClientID, cfg.Auth.ClientSecret, cfg.Auth.RedirectURL, []byte(sessionSecret))

	ctr := controllers.NewController(&controllers.ControllerConfig{
		Service:    service,
		Bucket:     a.bucket,
		Verifier:   verifier,
		Sessions:   auth.NewSessions(a.store, tokens),
		MagicLinks: auth.NewMagicLinks(a.kv, mailer, cfg.Auth.MagicLinkTTL, cfg.HTTPServer.PublicURL),
		Google:     google,
	})
	a.http = New(cfg.HTTPServer.Port, routes.Options{
		Controller:   ctr,
		Verifier:     verifier,
		Google:       google,
		AllowOrigins: cfg.HTTPServer.AllowOrigins,
	})
	a.realtime = realtime.NewServer(cfg.PubSub.Port, realtime.NewWebsocketHandler(a.hub, verifier, nil))
	a.sweeper = certificates.NewSweeper(a.store, a.bucket, cfg.Storage.OrphanGrace, a.log.WithField("component", "sweeper"))
	return a, nil
}

// Store and Bucket are exposed for offline maintenance commands.
func (a *App) Store() storage.Store { return a.store }

func (a *App) Bucket() *blob.Bucket { return a.bucket }

// Run serves until ctx is done or one of the actors fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.sweeper.Start(a.config.Storage.SweepSchedule); err != nil {
		return err
	}
	defer a.sweeper.Stop()

	var g run.Group
	{
		g.Add(a.http.Start, func(error) {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.http.Shutdown(sctx); err != nil {
				log.Error().Err(err).Msg("http shutdown")
			}
		})
	}
	{
		g.Add(a.realtime.ListenAndServe, func(error) {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.realtime.Shutdown(sctx); err != nil {
				log.Error().Err(err).Msg("realtime shutdown")
			}
		})
	}
	if a.bridge != nil {
		bctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return a.bridge.Run(bctx, a.hub)
		}, func(error) {
			cancel()
		})
	}
	{
		done := make(chan struct{})
		g.Add(func() error {
			select {
			case <-ctx.Done():
				log.Info().Msg("shutdown requested")
			case <-done:
			}
			return nil
		}, func(error) {
			close(done)
		})
	}
	return g.Run()
}

// Close releases every backend that was opened.
func (a *App) Close() {
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.log.WithError(err).Warn("close kv")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("close store")
		}
	}
}
