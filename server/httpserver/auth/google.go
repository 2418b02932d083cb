package auth

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	StateKey    = "state"
	SessionName = "certifysession"
)

var ErrOAuthDisabled = errors.New("google sign-in is not configured")

func init() {
	gob.Register(goauth.Userinfo{})
}

// Google wraps the OAuth code flow against Google's endpoints.
type Google struct {
	conf  *oauth2.Config
	store sessions.Store
}

func NewGoogle(clientID, clientSecret, redirectURL string, secret []byte) *Google {
	g := &Google{store: cookie.NewStore(secret)}
	if clientID == "" || clientSecret == "" {
		glog.Warning("[Gin-OAuth] client credentials missing, google sign-in disabled")
		return g
	}
	g.conf = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{goauth.UserinfoEmailScope},
		Endpoint:     google.Endpoint,
	}
	return g
}

func (g *Google) Enabled() bool {
	return g.conf != nil
}

// Session is the cookie middleware holding the OAuth state.
func (g *Google) Session() gin.HandlerFunc {
	return sessions.Sessions(SessionName, g.store)
}

func (g *Google) LoginURL(state string) (string, error) {
	if g.conf == nil {
		return "", ErrOAuthDisabled
	}
	return g.conf.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for the user's verified email.
func (g *Google) Exchange(ctx context.Context, code string) (string, error) {
	if g.conf == nil {
		return "", ErrOAuthDisabled
	}
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code for oauth token: %w", err)
	}
	oAuth2Service, err := goauth.NewService(ctx, option.WithTokenSource(g.conf.TokenSource(ctx, tok)))
	if err != nil {
		glog.Errorf("[Gin-OAuth] Failed to create oauth service: %v", err)
		return "", fmt.Errorf("failed to create oauth service: %w", err)
	}
	userInfo, err := oAuth2Service.Userinfo.Get().Do()
	if err != nil {
		glog.Errorf("[Gin-OAuth] Failed to get userinfo for user: %v", err)
		return "", fmt.Errorf("failed to get userinfo for user: %w", err)
	}
	if userInfo.VerifiedEmail != nil && !*userInfo.VerifiedEmail {
		return "", errors.New("google account email is not verified")
	}
	return userInfo.Email, nil
}
