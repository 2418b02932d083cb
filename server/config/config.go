package config

import "time"

var (
	CertifyServer  = "certify"
	DefaultFile    = "certify.yaml"
	EnvPrefix      = "CERTIFY"
	AuthTimeout    = 5 * time.Second
	CertificatesTB = "certificates"
)

type Configs struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	Auth     struct {
		HmacSecret    string        `mapstructure:"hmacsecret" yaml:"hmacsecret"`
		SessionSecret string        `mapstructure:"session_secret" yaml:"session_secret"`
		TokenTTL      time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
		MagicLinkTTL  time.Duration `mapstructure:"magic_link_ttl" yaml:"magic_link_ttl"`
		ClientID      string        `mapstructure:"clientid" yaml:"clientid"`
		ClientSecret  string        `mapstructure:"client_secret" yaml:"client_secret"`
		RedirectURL   string        `mapstructure:"redirect_url" yaml:"redirect_url"`
	} `mapstructure:"auth" yaml:"auth"`
	HTTPServer struct {
		Port         int      `mapstructure:"port" yaml:"port"`
		PublicURL    string   `mapstructure:"public_url" yaml:"public_url"`
		AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
	} `mapstructure:"httpserver" yaml:"httpserver"`
	PubSub struct {
		Port int `mapstructure:"port" yaml:"port"`
	} `mapstructure:"pubsub" yaml:"pubsub"`
	Nats struct {
		URL           string        `mapstructure:"url" yaml:"url"`
		Name          string        `mapstructure:"name" yaml:"name"`
		Subject       string        `mapstructure:"subject" yaml:"subject"`
		ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
		MaxReconnects int           `mapstructure:"max_reconnect" yaml:"max_reconnect"`
	} `mapstructure:"nats" yaml:"nats"`
	Redis struct {
		Host     string `mapstructure:"host" yaml:"host"`
		Port     string `mapstructure:"port" yaml:"port"`
		Password string `mapstructure:"password" yaml:"password"`
	} `mapstructure:"redis" yaml:"redis"`
	DB struct {
		Driver   string `mapstructure:"driver" yaml:"driver"`
		Path     string `mapstructure:"path" yaml:"path"`
		Postgres struct {
			Username     string `mapstructure:"username" yaml:"username"`
			Password     string `mapstructure:"password" yaml:"password"`
			Port         int    `mapstructure:"port" yaml:"port"`
			URI          string `mapstructure:"uri" yaml:"uri"`
			DatabaseName string `mapstructure:"databasename" yaml:"databaseName"`
			SSLMode      string `mapstructure:"sslmode" yaml:"sslmode"`
		} `mapstructure:"postgres" yaml:"postgres"`
	} `mapstructure:"db" yaml:"db"`
	Storage struct {
		Root          string        `mapstructure:"root" yaml:"root"`
		Bucket        string        `mapstructure:"bucket" yaml:"bucket"`
		Public        bool          `mapstructure:"public" yaml:"public"`
		SignedURLTTL  time.Duration `mapstructure:"signed_url_ttl" yaml:"signed_url_ttl"`
		MaxFileSize   int64         `mapstructure:"max_file_size" yaml:"max_file_size"`
		SweepSchedule string        `mapstructure:"sweep_schedule" yaml:"sweep_schedule"`
		OrphanGrace   time.Duration `mapstructure:"orphan_grace" yaml:"orphan_grace"`
	} `mapstructure:"storage" yaml:"storage"`
	Client struct {
		ServerURL   string        `mapstructure:"server_url" yaml:"server_url"`
		RealtimeURL string        `mapstructure:"realtime_url" yaml:"realtime_url"`
		StatePath   string        `mapstructure:"state_path" yaml:"state_path"`
		UndoWindow  time.Duration `mapstructure:"undo_window" yaml:"undo_window"`
		Workers     int           `mapstructure:"workers" yaml:"workers"`
	} `mapstructure:"client" yaml:"client"`
	Mail struct {
		Host     string `mapstructure:"host" yaml:"host"`
		Port     int    `mapstructure:"port" yaml:"port"`
		Username string `mapstructure:"username" yaml:"username"`
		Password string `mapstructure:"password" yaml:"password"`
		From     string `mapstructure:"from" yaml:"from"`
	} `mapstructure:"mail" yaml:"mail"`
}

// PostgresDSN renders the lib/pq connection string.
func (c *Configs) PostgresDSN() string {
	pg := c.DB.Postgres
	sslmode := pg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return "host=" + pg.URI +
		" port=" + itoa(pg.Port) +
		" user=" + pg.Username +
		" password=" + pg.Password +
		" dbname=" + pg.DatabaseName +
		" sslmode=" + sslmode
}
