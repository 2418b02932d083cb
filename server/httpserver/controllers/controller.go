package controllers

import (
	"errors"
	"net/http"

	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/httpserver/auth"
	pkgauth "github.com/SumantSagar73/certify/server/pkg/auth"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	UserIDKey = "user_id"
	AccessKey = "access"
)

type ControllerConfig struct {
	Service    *certificates.Service
	Bucket     *blob.Bucket
	Verifier   *auth.Verifier
	Sessions   *auth.Sessions
	MagicLinks *auth.MagicLinks
	Google     *auth.Google
}

type Controller struct {
	service    *certificates.Service
	bucket     *blob.Bucket
	verifier   *auth.Verifier
	sessions   *auth.Sessions
	magicLinks *auth.MagicLinks
	google     *auth.Google
}

func NewController(ctrconf *ControllerConfig) *Controller {
	return &Controller{
		service:    ctrconf.Service,
		bucket:     ctrconf.Bucket,
		verifier:   ctrconf.Verifier,
		sessions:   ctrconf.Sessions,
		magicLinks: ctrconf.MagicLinks,
		google:     ctrconf.Google,
	}
}

func userID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func access(c *gin.Context) *pkgauth.AccessDetails {
	v, _ := c.Get(AccessKey)
	acc, _ := v.(*pkgauth.AccessDetails)
	return acc
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, blob.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	case errors.Is(err, certificates.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, blob.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, pkgauth.ErrInvalidToken), errors.Is(err, auth.ErrRevoked),
		errors.Is(err, auth.ErrLinkExpired), errors.Is(err, blob.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	body := gin.H{"err": err.Error()}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
		body["err"] = verr.Message
	}
	c.JSON(status, body)
}
