package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/SumantSagar73/certify/server/realtime"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type NatsConfig struct {
	URL           string
	Name          string
	Subject       string
	ReconnectWait time.Duration
	MaxReconnects int

	Logger *logrus.Entry
}

// Bridge carries change events between instances over NATS. Publish sends
// to the shared subject; Run feeds every received event into the local hub.
type Bridge struct {
	config *NatsConfig
	nc     *nats.Conn
}

func optNats(o *NatsConfig) []nats.Option {
	opts := make([]nats.Option, 0)
	opts = append(opts, nats.Name(o.Name))
	opts = append(opts, nats.MaxReconnects(o.MaxReconnects))
	opts = append(opts, nats.ReconnectWait(o.ReconnectWait))
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			o.Logger.WithError(err).Warn("nats disconnected")
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		o.Logger.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
	}))
	return opts
}

func Connect(config *NatsConfig) (*Bridge, error) {
	nc, err := nats.Connect(config.URL, optNats(config)...)
	if err != nil {
		config.Logger.Error(err)
		return nil, err
	}
	return &Bridge{config: config, nc: nc}, nil
}

// Subject returns the NATS subject events on table are published to.
func Subject(prefix, table string) string {
	return prefix + "." + table
}

func encodeEvent(evt models.ChangeEvent) ([]byte, error) {
	return json.Marshal(evt)
}

func decodeEvent(data []byte) (models.ChangeEvent, error) {
	var evt models.ChangeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return evt, err
	}
	if evt.Table == "" || evt.Type == "" {
		return evt, errors.New("change event without table or type")
	}
	return evt, nil
}

func (b *Bridge) Publish(ctx context.Context, evt models.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	return b.nc.Publish(Subject(b.config.Subject, evt.Table), data)
}

// Run relays subscribed events into local until ctx is done.
func (b *Bridge) Run(ctx context.Context, local realtime.Publisher) error {
	sub, err := b.nc.Subscribe(b.config.Subject+".>", func(msg *nats.Msg) {
		evt, err := decodeEvent(msg.Data)
		if err != nil {
			b.config.Logger.WithError(err).Warn("drop malformed change event")
			return
		}
		if err := local.Publish(ctx, evt); err != nil {
			b.config.Logger.WithError(err).Debug("local publish")
		}
	})
	if err != nil {
		b.config.Logger.Error(err)
		return err
	}
	if err := b.nc.Flush(); err != nil {
		sub.Unsubscribe()
		return err
	}
	b.config.Logger.WithField("subject", b.config.Subject).Info("nats bridge subscribed")

	<-ctx.Done()
	b.config.Logger.Warn("stop subscribe nats")
	return sub.Unsubscribe()
}

func (b *Bridge) Close() {
	b.nc.Close()
}
