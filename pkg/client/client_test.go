package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SumantSagar73/certify/pkg/kv"
	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/SumantSagar73/certify/server/httpserver/controllers"
	"github.com/SumantSagar73/certify/server/httpserver/routes"
	pkgauth "github.com/SumantSagar73/certify/server/pkg/auth"
	"github.com/SumantSagar73/certify/server/realtime"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkCatcher struct {
	mu   sync.Mutex
	link string
}

func (l *linkCatcher) SendMagicLink(_ context.Context, _, link string) error {
	l.mu.Lock()
	l.link = link
	l.mu.Unlock()
	return nil
}

func (l *linkCatcher) token() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, _ := url.Parse(l.link)
	return u.Query().Get("token")
}

type memTokens struct {
	mu  sync.Mutex
	tok string
}

func (m *memTokens) SessionToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok, nil
}

func (m *memTokens) SetSessionToken(_ context.Context, t string) error {
	m.mu.Lock()
	m.tok = t
	m.mu.Unlock()
	return nil
}

type env struct {
	api  *httptest.Server
	feed *httptest.Server
	mail *linkCatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := storage.OpenBunt(":memory:", logger.Discard())
	require.NoError(t, err)
	kvs, err := kv.OpenBunt(":memory:")
	require.NoError(t, err)

	e := &env{mail: &linkCatcher{}}
	var router http.Handler
	e.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	bucket := blob.New(afero.NewMemMapFs(), blob.Options{
		Name:      "certvault-certificates",
		PublicURL: e.api.URL,
		Signer:    blob.NewSigner("s"),
	})
	hub := realtime.NewHub()
	tokens := pkgauth.NewTokenManager("secret", time.Hour)
	verifier := auth.NewVerifier(tokens, kvs)
	google := auth.NewGoogle("", "", "", []byte("x"))

	ctr := controllers.NewController(&controllers.ControllerConfig{
		Service:    certificates.NewService(store, bucket, hub, certificates.Config{Logger: logger.Discard()}),
		Bucket:     bucket,
		Verifier:   verifier,
		Sessions:   auth.NewSessions(store, tokens),
		MagicLinks: auth.NewMagicLinks(kvs, e.mail, time.Hour, e.api.URL),
		Google:     google,
	})
	router = routes.Build(routes.Options{Controller: ctr, Verifier: verifier, Google: google})
	e.feed = httptest.NewServer(realtime.NewServer(0, realtime.NewWebsocketHandler(hub, verifier, nil)).Handler())

	t.Cleanup(func() {
		e.api.Close()
		e.feed.Close()
		store.Close()
		kvs.Close()
	})
	return e
}

func (e *env) client(store TokenStore) *Client {
	return New(Config{
		BaseURL:     e.api.URL,
		RealtimeURL: e.feed.URL,
		Session:     NewSessionHolder(store),
		Logger:      logger.Discard(),
	})
}

func signIn(t *testing.T, e *env, c *Client, email string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.SendMagicLink(ctx, email))
	sess, err := c.Verify(ctx, e.mail.token())
	require.NoError(t, err)
	require.Equal(t, email, sess.User.Email)
}

func TestClientRoundTrip(t *testing.T) {
	e := newEnv(t)
	tokens := &memTokens{}
	c := e.client(tokens)
	ctx := context.Background()

	var changes []string
	unsubscribeSession := c.Session().OnChange(func(tok string) { changes = append(changes, tok) })
	defer unsubscribeSession()

	signIn(t, e, c, "ada@example.com")
	assert.NotEmpty(t, tokens.tok, "token persisted")
	require.Len(t, changes, 1)

	res, err := c.Upload(ctx, certificates.UploadInput{
		FileName: "aws.pdf",
		MimeType: "application/pdf",
		Body:     strings.NewReader("%PDF"),
		Edit:     models.CertificateEdit{Title: "AWS Cloud Practitioner", IsPrivate: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.URL)

	body, err := c.Fetch(ctx, res.URL)
	require.NoError(t, err)
	b, _ := io.ReadAll(body)
	body.Close()
	assert.Equal(t, "%PDF", string(b))

	page, err := c.List(ctx, certificates.ListParams{Page: 1, Title: "aws"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = c.Update(ctx, res.Certificate.ID, models.CertificateEdit{Title: ""})
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = c.Update(ctx, "00000000-0000-0000-0000-000000000000", models.CertificateEdit{Title: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := c.Get(ctx, []string{res.Certificate.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, c.DeleteRows(ctx, []string{res.Certificate.ID}))
	require.NoError(t, c.RemoveBlobs(ctx, []string{res.Certificate.StoragePath}))
	assert.ErrorIs(t, c.RemoveBlobs(ctx, []string{res.Certificate.StoragePath}), storage.ErrNotFound)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, tokens.tok)
	assert.Equal(t, []string{changes[0], ""}, changes)

	_, err = c.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestClientSubscribe(t *testing.T) {
	e := newEnv(t)
	c := e.client(nil)
	signIn(t, e, c, "ada@example.com")
	ctx := context.Background()

	events := make(chan models.ChangeEvent, 4)
	stop, err := c.Subscribe(ctx, "certificates", func(evt models.ChangeEvent) {
		select {
		case events <- evt:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	// the feed connects asynchronously; retry the upload signal until seen
	deadline := time.After(5 * time.Second)
	for {
		_, err := c.Upload(ctx, certificates.UploadInput{
			FileName: "a.pdf", MimeType: "application/pdf", Body: strings.NewReader("x"),
		})
		require.NoError(t, err)
		select {
		case evt := <-events:
			assert.Equal(t, models.EventInsert, evt.Type)
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("no change event received")
		}
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	assert.ErrorIs(t, &APIError{Status: http.StatusUnauthorized}, ErrUnauthorized)
	assert.ErrorIs(t, &APIError{Status: http.StatusRequestEntityTooLarge}, blob.ErrTooLarge)
	var verr *models.ValidationError
	require.ErrorAs(t, &APIError{Status: http.StatusUnprocessableEntity, Field: "title", Message: "Title is required"}, &verr)
	assert.Equal(t, "title", verr.Field)
}

func TestSubscribeRequiresSession(t *testing.T) {
	c := New(Config{BaseURL: "http://x", RealtimeURL: "http://y", Logger: logger.Discard()})
	_, err := c.Subscribe(context.Background(), "certificates", func(models.ChangeEvent) {})
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
