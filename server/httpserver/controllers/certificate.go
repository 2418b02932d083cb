package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/gin-gonic/gin"
)

type idsRequest struct {
	IDs []string `json:"ids"`
}

func parseDateParam(c *gin.Context, name string) (*models.Date, bool) {
	d, err := models.ParseOptionalDate(c.Query(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "field": name})
		return nil, false
	}
	return d, true
}

func (ctr *Controller) ListCertificates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	from, ok := parseDateParam(c, "from")
	if !ok {
		return
	}
	to, ok := parseDateParam(c, "to")
	if !ok {
		return
	}

	res, err := ctr.service.List(c.Request.Context(), userID(c), certificates.ListParams{
		Page:      page,
		PageSize:  pageSize,
		Title:     c.Query("q"),
		Category:  c.Query("category"),
		Authority: c.Query("authority"),
		From:      from,
		To:        to,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ctr *Controller) UploadCertificate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctr.service.MaxFileSize()+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || errors.Is(err, multipart.ErrMessageTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"err":   fmt.Sprintf("File must be at most %d MB", ctr.service.MaxFileSize()>>20),
				"field": "file",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"err": "Please select a file", "field": "file"})
		return
	}
	issue, err := models.ParseOptionalDate(c.PostForm("issue_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "field": "issue_date"})
		return
	}
	expiry, err := models.ParseOptionalDate(c.PostForm("expiry_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "field": "expiry_date"})
		return
	}
	private := true
	if v := c.PostForm("is_private"); v != "" {
		if private, err = strconv.ParseBool(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": "is_private must be true or false", "field": "is_private"})
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	res, err := ctr.service.Upload(c.Request.Context(), userID(c), certificates.UploadInput{
		FileName: fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Body:     f,
		Edit: models.CertificateEdit{
			Title:            c.PostForm("title"),
			IssuingAuthority: c.PostForm("issuing_authority"),
			Category:         c.PostForm("category"),
			Notes:            c.PostForm("notes"),
			IssueDate:        issue,
			ExpiryDate:       expiry,
			IsPrivate:        private,
		},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (ctr *Controller) LookupCertificates(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	items, err := ctr.service.Get(c.Request.Context(), userID(c), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []*models.Certificate{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (ctr *Controller) UpdateCertificate(c *gin.Context) {
	var edit models.CertificateEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	updated, err := ctr.service.Update(c.Request.Context(), userID(c), c.Param("id"), edit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (ctr *Controller) DeleteCertificates(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "ids required"})
		return
	}
	deleted, err := ctr.service.DeleteRows(c.Request.Context(), userID(c), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	if deleted == nil {
		deleted = []*models.Certificate{}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (ctr *Controller) ListAuthorities(c *gin.Context) {
	items, err := ctr.service.Authorities(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
