package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/SumantSagar73/certify/server/blob"
	"github.com/gin-gonic/gin"
)

type removeRequest struct {
	Paths []string `json:"paths"`
}

// RemoveObjects deletes blobs by path. Partial failures are reported
// together and the successful removals stand.
func (ctr *Controller) RemoveObjects(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "paths required"})
		return
	}
	if err := ctr.service.RemoveObjects(c.Request.Context(), userID(c), req.Paths); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": req.Paths})
}

func (ctr *Controller) ObjectURL(c *gin.Context) {
	url, err := ctr.service.ResolveURL(c.Request.Context(), userID(c), c.Query("path"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (ctr *Controller) serveObject(c *gin.Context, p string) {
	f, info, err := ctr.bucket.Open(p)
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func objectPath(c *gin.Context) (string, bool) {
	if c.Param("bucket") == "" {
		return "", false
	}
	return strings.TrimPrefix(c.Param("path"), "/"), true
}

// PublicObject serves objects of a public bucket without authentication.
func (ctr *Controller) PublicObject(c *gin.Context) {
	p, ok := objectPath(c)
	if !ok || c.Param("bucket") != ctr.bucket.Name() || !ctr.bucket.IsPublic() {
		c.JSON(http.StatusNotFound, gin.H{"err": "not found"})
		return
	}
	ctr.serveObject(c, p)
}

// SignedObject serves an object to anyone holding a valid signed token.
func (ctr *Controller) SignedObject(c *gin.Context) {
	p, ok := objectPath(c)
	if !ok || c.Param("bucket") != ctr.bucket.Name() {
		c.JSON(http.StatusNotFound, gin.H{"err": "not found"})
		return
	}
	if err := ctr.bucket.VerifySignedToken(c.Query("token"), p); err != nil {
		if errors.Is(err, blob.ErrInvalidPath) {
			fail(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"err": err.Error()})
		return
	}
	ctr.serveObject(c, p)
}
