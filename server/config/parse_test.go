package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaults(t *testing.T) {
	c, err := Get(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "buntdb", c.DB.Driver)
	assert.Equal(t, int64(10<<20), c.Storage.MaxFileSize)
	assert.Equal(t, 7*time.Second, c.Client.UndoWindow)
	assert.Equal(t, "certify.changes", c.Nats.Subject)
}

func TestGetReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "certify.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
auth:
  hmacsecret: from-file
storage:
  bucket: other-bucket
  signed_url_ttl: 15m
`), 0o600))
	t.Setenv("CERTIFY_HTTPSERVER_PORT", "9100")

	c, err := Get(New(), file)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.Auth.HmacSecret)
	assert.Equal(t, "other-bucket", c.Storage.Bucket)
	assert.Equal(t, 15*time.Minute, c.Storage.SignedURLTTL)
	assert.Equal(t, 9100, c.HTTPServer.Port)
}

func TestGetMissingFile(t *testing.T) {
	_, err := Get(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c, err := Get(New(), "")
	require.NoError(t, err)
	c.DB.Driver = "mysql"
	assert.Error(t, c.Validate())
}

func TestPrintMasksSecrets(t *testing.T) {
	c, err := Get(New(), "")
	require.NoError(t, err)
	c.Auth.HmacSecret = "very-secret"
	c.DB.Postgres.Password = "pw"

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, c))
	assert.NotContains(t, buf.String(), "very-secret")
	assert.Contains(t, buf.String(), "****")
	assert.Equal(t, "very-secret", c.Auth.HmacSecret, "original untouched")
}

func TestPostgresDSN(t *testing.T) {
	c := &Configs{}
	c.DB.Postgres.URI = "db"
	c.DB.Postgres.Port = 5432
	c.DB.Postgres.Username = "u"
	c.DB.Postgres.DatabaseName = "certify"
	assert.Equal(t, "host=db port=5432 user=u password= dbname=certify sslmode=disable", c.PostgresDSN())
}
