package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
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

type linkCatcher struct{ link string }

func (l *linkCatcher) SendMagicLink(_ context.Context, _, link string) error {
	l.link = link
	return nil
}

type harness struct {
	router *gin.Engine
	mail   *linkCatcher
	hub    *realtime.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.OpenBunt(":memory:", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	kvs, err := kv.OpenBunt(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kvs.Close() })

	bucket := blob.New(afero.NewMemMapFs(), blob.Options{
		Name:      "certvault-certificates",
		PublicURL: "http://example.test",
		Signer:    blob.NewSigner("secret"),
	})
	hub := realtime.NewHub()
	tokens := pkgauth.NewTokenManager("secret", time.Hour)
	verifier := auth.NewVerifier(tokens, kvs)
	mail := &linkCatcher{}
	google := auth.NewGoogle("", "", "", []byte("session-secret"))

	ctr := controllers.NewController(&controllers.ControllerConfig{
		Service:    certificates.NewService(store, bucket, hub, certificates.Config{Logger: logger.Discard()}),
		Bucket:     bucket,
		Verifier:   verifier,
		Sessions:   auth.NewSessions(store, tokens),
		MagicLinks: auth.NewMagicLinks(kvs, mail, time.Hour, "http://example.test"),
		Google:     google,
	})
	router := routes.Build(routes.Options{Controller: ctr, Verifier: verifier, Google: google})
	return &harness{router: router, mail: mail, hub: hub}
}

func (h *harness) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) doJSON(t *testing.T, method, target, token string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return h.do(t, method, target, token, body, "application/json")
}

func (h *harness) signIn(t *testing.T, email string) string {
	t.Helper()
	w := h.doJSON(t, http.MethodPost, "/apis/v1/auth/otp", "", map[string]string{"email": email})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	u, err := url.Parse(h.mail.link)
	require.NoError(t, err)
	w = h.do(t, http.MethodGet, u.RequestURI(), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sess auth.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.AccessToken)

	w = h.do(t, http.MethodGet, u.RequestURI(), "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "magic link is single use")
	return sess.AccessToken
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, mimeType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCertificateLifecycle(t *testing.T) {
	h := newHarness(t)
	token := h.signIn(t, "ada@example.com")

	var events []models.ChangeEvent
	h.hub.Subscribe("certificates", func(e models.ChangeEvent) { events = append(events, e) })

	body, ct := multipartUpload(t, map[string]string{
		"title":       "AWS Cloud Practitioner",
		"category":    "Online Course",
		"issue_date":  "2024-01-01",
		"expiry_date": "2027-01-01",
	}, "aws.pdf", "application/pdf", []byte("%PDF-1.4"))
	w := h.do(t, http.MethodPost, "/apis/v1/certificates", token, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var up certificates.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	cert := up.Certificate
	assert.True(t, cert.IsPrivate)
	require.NotEmpty(t, up.URL)

	// signed download
	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	w = h.do(t, http.MethodGet, u.RequestURI(), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	w = h.do(t, http.MethodGet, u.Path+"?token=forged", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/apis/v1/certificates?q=aws&page=1", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list certificates.ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 8, list.PageSize)

	w = h.doJSON(t, http.MethodPut, "/apis/v1/certificates/"+cert.ID, token, map[string]any{
		"title": "AWS Certified Cloud Practitioner", "category": "Online Course", "is_private": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Certificate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "AWS Certified Cloud Practitioner", updated.Title)
	assert.Equal(t, cert.StoragePath, updated.StoragePath)

	w = h.doJSON(t, http.MethodPut, "/apis/v1/certificates/"+cert.ID, token, map[string]any{
		"title": "x", "issue_date": "2025-01-01", "expiry_date": "2024-01-01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.doJSON(t, http.MethodPost, "/apis/v1/certificates/lookup", token, map[string]any{"ids": []string{cert.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), cert.StoragePath)

	w = h.do(t, http.MethodGet, "/apis/v1/storage/url?path="+url.QueryEscape(cert.StoragePath), token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.doJSON(t, http.MethodPost, "/apis/v1/certificates/delete", token, map[string]any{"ids": []string{cert.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.doJSON(t, http.MethodPost, "/apis/v1/storage/remove", token, map[string]any{"paths": []string{cert.StoragePath}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.doJSON(t, http.MethodPost, "/apis/v1/storage/remove", token, map[string]any{"paths": []string{cert.StoragePath}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var types []models.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []models.EventType{models.EventInsert, models.EventUpdate, models.EventDelete}, types)
}

func TestUploadRejections(t *testing.T) {
	h := newHarness(t)
	token := h.signIn(t, "ada@example.com")

	body, ct := multipartUpload(t, map[string]string{"title": "x"}, "virus.exe", "application/x-msdownload", []byte("MZ"))
	w := h.do(t, http.MethodPost, "/apis/v1/certificates", token, body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body, ct = multipartUpload(t, map[string]string{"issue_date": "01/01/2024"}, "a.pdf", "application/pdf", []byte("x"))
	w = h.do(t, http.MethodPost, "/apis/v1/certificates", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := bytes.Repeat([]byte("x"), int(certificates.DefaultMaxFileSize)+1)
	body, ct = multipartUpload(t, nil, "big.pdf", "application/pdf", big)
	w = h.do(t, http.MethodPost, "/apis/v1/certificates", token, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	body, ct = multipartUpload(t, map[string]string{"is_private": "yes"}, "a.pdf", "application/pdf", []byte("x"))
	w = h.do(t, http.MethodPost, "/apis/v1/certificates", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "is_private")

	huge := bytes.Repeat([]byte("x"), int(certificates.DefaultMaxFileSize)+2<<20)
	body, ct = multipartUpload(t, nil, "huge.pdf", "application/pdf", huge)
	w = h.do(t, http.MethodPost, "/apis/v1/certificates", token, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "at most 10 MB")

	list := h.do(t, http.MethodGet, "/apis/v1/certificates", token, nil, "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"total":0`)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/apis/v1/certificates", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/apis/v1/certificates", "garbage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	token := h.signIn(t, "ada@example.com")

	w := h.do(t, http.MethodGet, "/apis/v1/auth/session", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")

	w = h.do(t, http.MethodPost, "/apis/v1/auth/logout", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/apis/v1/auth/session", token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUsersAreIsolated(t *testing.T) {
	h := newHarness(t)
	ada := h.signIn(t, "ada@example.com")
	bob := h.signIn(t, "bob@example.com")

	body, ct := multipartUpload(t, map[string]string{"title": "mine"}, "a.pdf", "application/pdf", []byte("x"))
	w := h.do(t, http.MethodPost, "/apis/v1/certificates", ada, body, ct)
	require.Equal(t, http.StatusCreated, w.Code)
	var up certificates.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))

	w = h.do(t, http.MethodGet, "/apis/v1/certificates", bob, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)

	w = h.doJSON(t, http.MethodPut, "/apis/v1/certificates/"+up.Certificate.ID, bob, map[string]any{"title": "stolen"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.doJSON(t, http.MethodPost, "/apis/v1/storage/remove", bob, map[string]any{"paths": []string{up.Certificate.StoragePath}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGoogleLoginDisabled(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/apis/v1/auth/google/login", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
