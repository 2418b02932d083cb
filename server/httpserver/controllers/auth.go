package controllers

import (
	"net/http"

	"github.com/SumantSagar73/certify/pkg/helper"
	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type otpRequest struct {
	Email string `json:"email"`
}

// SendMagicLink mails a one-time sign-in link.
func (ctr *Controller) SendMagicLink(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Invalid json provided"})
		return
	}
	if _, err := ctr.magicLinks.Send(c.Request.Context(), req.Email); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Check your email for the sign-in link"})
}

func (ctr *Controller) VerifyMagicLink(c *gin.Context) {
	email, err := ctr.magicLinks.Consume(c.Request.Context(), c.Query("token"))
	if err != nil {
		fail(c, err)
		return
	}
	ctr.issueSession(c, email)
}

func (ctr *Controller) issueSession(c *gin.Context, email string) {
	sess, err := ctr.sessions.Issue(c.Request.Context(), email)
	if err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("user", sess.User.ID).Msg("signed in")
	c.JSON(http.StatusOK, sess)
}

func (ctr *Controller) GoogleLogin(c *gin.Context) {
	state, err := helper.RandomToken(16)
	if err != nil {
		fail(c, err)
		return
	}
	url, err := ctr.google.LoginURL(state)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
		return
	}
	session := sessions.Default(c)
	session.Set(auth.StateKey, state)
	if err := session.Save(); err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

func (ctr *Controller) GoogleCallback(c *gin.Context) {
	session := sessions.Default(c)
	want, _ := session.Get(auth.StateKey).(string)
	if want == "" || c.Query(auth.StateKey) != want {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "invalid oauth state"})
		return
	}
	session.Delete(auth.StateKey)
	_ = session.Save()

	email, err := ctr.google.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	ctr.issueSession(c, email)
}

func (ctr *Controller) CurrentSession(c *gin.Context) {
	sess, err := ctr.sessions.Current(c.Request.Context(), access(c))
	if err != nil {
		fail(c, err)
		return
	}
	sess.AccessToken = auth.ExtractToken(c.Request)
	c.JSON(http.StatusOK, sess)
}

func (ctr *Controller) Logout(c *gin.Context) {
	if err := ctr.verifier.Revoke(c.Request.Context(), access(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}
