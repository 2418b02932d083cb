package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("auth.hmacsecret", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("auth.magic_link_ttl", time.Hour)
	v.SetDefault("auth.clientid", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.redirect_url", "")
	v.SetDefault("httpserver.port", 8001)
	v.SetDefault("httpserver.public_url", "http://localhost:8001")
	v.SetDefault("httpserver.allow_origins", []string{"*"})
	v.SetDefault("pubsub.port", 8002)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.name", "certify")
	v.SetDefault("nats.subject", "certify.changes")
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.max_reconnect", 60)
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("db.driver", "buntdb")
	v.SetDefault("db.path", "certify.db")
	v.SetDefault("db.postgres.username", "postgres")
	v.SetDefault("db.postgres.password", "")
	v.SetDefault("db.postgres.port", 5432)
	v.SetDefault("db.postgres.uri", "localhost")
	v.SetDefault("db.postgres.databasename", "certify")
	v.SetDefault("db.postgres.sslmode", "disable")
	v.SetDefault("storage.root", "data/objects")
	v.SetDefault("storage.bucket", "certvault-certificates")
	v.SetDefault("storage.public", false)
	v.SetDefault("storage.signed_url_ttl", time.Hour)
	v.SetDefault("storage.max_file_size", 10*1024*1024)
	v.SetDefault("storage.sweep_schedule", "@every 1h")
	v.SetDefault("storage.orphan_grace", 24*time.Hour)
	v.SetDefault("client.server_url", "http://localhost:8001")
	v.SetDefault("client.realtime_url", "http://localhost:8002")
	v.SetDefault("client.state_path", "certify-client.db")
	v.SetDefault("client.undo_window", 7*time.Second)
	v.SetDefault("client.workers", 4)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@certify.local")
}

// New returns a viper instance with defaults and env overrides wired.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Get loads f on top of the defaults. A missing default file is not an error.
func Get(v *viper.Viper, f string) (*Configs, error) {
	if f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !(errors.As(err, &pathErr) && f == DefaultFile) {
				return nil, fmt.Errorf("read config %s: %w", f, err)
			}
		}
	}

	config := &Configs{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Configs) Validate() error {
	switch c.DB.Driver {
	case "postgres", "buntdb":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Storage.MaxFileSize <= 0 {
		return errors.New("storage.max_file_size must be positive")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required")
	}
	return nil
}

// Print writes the effective configuration with secrets masked.
func Print(w io.Writer, c *Configs) error {
	masked := *c
	masked.Auth.HmacSecret = mask(masked.Auth.HmacSecret)
	masked.Auth.SessionSecret = mask(masked.Auth.SessionSecret)
	masked.Auth.ClientSecret = mask(masked.Auth.ClientSecret)
	masked.DB.Postgres.Password = mask(masked.DB.Postgres.Password)
	masked.Redis.Password = mask(masked.Redis.Password)
	masked.Mail.Password = mask(masked.Mail.Password)
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
