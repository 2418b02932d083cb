package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/sirupsen/logrus"
)

type Config struct {
	BaseURL     string
	RealtimeURL string
	HTTPClient  *http.Client
	Session     *SessionHolder
	Logger      *logrus.Entry
}

// Client talks to a certify server over its HTTP API and change feed.
type Client struct {
	base      string
	realtime  string
	http      *http.Client
	session   *SessionHolder
	log       *logrus.Entry
	reconnect reconnectStrategy
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Session == nil {
		cfg.Session = NewSessionHolder(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.InitLogger("info", "client")
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		realtime:  strings.TrimRight(cfg.RealtimeURL, "/"),
		http:      cfg.HTTPClient,
		session:   cfg.Session,
		log:       cfg.Logger,
		reconnect: defaultBackoffReconnect,
	}
}

func (c *Client) Session() *SessionHolder {
	return c.session
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if tok := c.session.Current(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) SendMagicLink(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/apis/v1/auth/otp", map[string]string{"email": email}, nil)
}

// Verify exchanges a magic-link token and signs in.
func (c *Client) Verify(ctx context.Context, token string) (*auth.Session, error) {
	var sess auth.Session
	if err := c.doJSON(ctx, http.MethodGet, "/apis/v1/auth/verify?token="+url.QueryEscape(token), nil, &sess); err != nil {
		return nil, err
	}
	if err := c.session.Set(ctx, sess.AccessToken); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) CurrentSession(ctx context.Context) (*auth.Session, error) {
	if !c.session.SignedIn() {
		return nil, ErrNotSignedIn
	}
	var sess auth.Session
	if err := c.doJSON(ctx, http.MethodGet, "/apis/v1/auth/session", nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Logout revokes the token server side and forgets it locally even when
// the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if c.session.SignedIn() {
		err = c.doJSON(ctx, http.MethodPost, "/apis/v1/auth/logout", nil, nil)
	}
	if serr := c.session.Set(ctx, ""); serr != nil {
		return serr
	}
	return err
}

func (c *Client) List(ctx context.Context, p certificates.ListParams) (*certificates.ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Title != "" {
		q.Set("q", p.Title)
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.Authority != "" {
		q.Set("authority", p.Authority)
	}
	if p.From != nil {
		q.Set("from", p.From.String())
	}
	if p.To != nil {
		q.Set("to", p.To.String())
	}
	var res certificates.ListResult
	if err := c.doJSON(ctx, http.MethodGet, "/apis/v1/certificates?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Get(ctx context.Context, ids []string) ([]*models.Certificate, error) {
	var res struct {
		Items []*models.Certificate `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/apis/v1/certificates/lookup", map[string]any{"ids": ids}, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) Authorities(ctx context.Context) ([]string, error) {
	var res struct {
		Items []string `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/apis/v1/certificates/authorities", nil, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) Update(ctx context.Context, id string, edit models.CertificateEdit) (*models.Certificate, error) {
	var out models.Certificate
	if err := c.doJSON(ctx, http.MethodPut, "/apis/v1/certificates/"+url.PathEscape(id), edit, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRows(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "/apis/v1/certificates/delete", map[string]any{"ids": ids}, nil)
}

func (c *Client) RemoveBlobs(ctx context.Context, paths []string) error {
	return c.doJSON(ctx, http.MethodPost, "/apis/v1/storage/remove", map[string]any{"paths": paths}, nil)
}

func (c *Client) ResolveURL(ctx context.Context, path string) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/apis/v1/storage/url?path="+url.QueryEscape(path), nil, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

// Fetch downloads an object URL. The caller closes the body.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

// Upload streams a multipart form with the file and its metadata.
func (c *Client) Upload(ctx context.Context, in certificates.UploadInput) (*certificates.UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		fields := map[string]string{
			"title":             in.Edit.Title,
			"issuing_authority": in.Edit.IssuingAuthority,
			"category":          in.Edit.Category,
			"notes":             in.Edit.Notes,
			"issue_date":        models.FormatOptional(in.Edit.IssueDate),
			"expiry_date":       models.FormatOptional(in.Edit.ExpiryDate),
			"is_private":        strconv.FormatBool(in.Edit.IsPrivate),
		}
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, in.FileName))
		hdr.Set("Content-Type", in.MimeType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, in.Body); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/apis/v1/certificates", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res certificates.UploadResult
	if err := c.send(req, &res); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &res, nil
}
