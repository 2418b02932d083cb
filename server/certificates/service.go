package certificates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SumantSagar73/certify/pkg/helper"
	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/config"
	"github.com/SumantSagar73/certify/server/realtime"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/sirupsen/logrus"
)

const DefaultPageSize = 8

var ErrForbidden = errors.New("forbidden")

type Config struct {
	MaxFileSize  int64
	SignedURLTTL time.Duration
	Logger       *logrus.Entry
}

// Service owns the row + blob lifecycle of certificates.
type Service struct {
	store     storage.Store
	bucket    *blob.Bucket
	publisher realtime.Publisher
	config    Config
	now       func() time.Time
}

func NewService(store storage.Store, bucket *blob.Bucket, publisher realtime.Publisher, cfg Config) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	return &Service{
		store:     store,
		bucket:    bucket,
		publisher: publisher,
		config:    cfg,
		now:       helper.GetTimeNow,
	}
}

func (s *Service) MaxFileSize() int64 {
	return s.config.MaxFileSize
}

func (s *Service) publish(ctx context.Context, typ models.EventType, newRow, oldRow *models.Certificate) {
	if s.publisher == nil {
		return
	}
	evt := models.ChangeEvent{
		Type:            typ,
		Table:           config.CertificatesTB,
		New:             newRow,
		Old:             oldRow,
		CommitTimestamp: s.now(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.config.Logger.WithError(err).WithField("type", typ).Warn("publish change event")
	}
}

type UploadResult struct {
	Certificate *models.Certificate `json:"certificate"`
	URL         string              `json:"url,omitempty"`
}

// Upload writes the blob first and the row second.
func (s *Service) Upload(ctx context.Context, userID string, in UploadInput) (*UploadResult, error) {
	in.MimeType = DetectMime(in.FileName, in.MimeType)
	in.Edit = in.Edit.Normalize()
	if in.Edit.Title == "" {
		in.Edit.Title = strings.TrimSpace(in.FileName)
	}
	if err := ValidateUpload(in, s.config.MaxFileSize); err != nil {
		return nil, err
	}
	if err := in.Edit.Validate(); err != nil {
		return nil, err
	}

	objectPath := helper.ObjectName(userID, in.FileName, s.now())
	n, err := s.bucket.Upload(ctx, objectPath, in.Body, s.config.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", in.FileName, err)
	}

	cert := &models.Certificate{
		UserID:      userID,
		StoragePath: objectPath,
		FileName:    in.FileName,
		FileSize:    n,
		MimeType:    in.MimeType,
	}
	cert.ApplyEdit(in.Edit)
	if err := s.store.InsertCertificate(ctx, cert); err != nil {
		if rmErr := s.bucket.Remove(context.Background(), objectPath); rmErr != nil {
			s.config.Logger.WithError(rmErr).WithField("path", objectPath).Warn("remove blob after failed insert")
		}
		return nil, fmt.Errorf("save certificate: %w", err)
	}
	s.config.Logger.WithField("certificate", cert.ID).WithField("path", objectPath).Info("certificate uploaded")
	s.publish(ctx, models.EventInsert, cert, nil)

	res := &UploadResult{Certificate: cert}
	if url, err := s.ResolveURL(ctx, userID, objectPath); err == nil {
		res.URL = url
	} else {
		s.config.Logger.WithError(err).Debug("signed url after upload")
	}
	return res, nil
}

type ListParams struct {
	Page      int
	PageSize  int
	Title     string
	Category  string
	Authority string
	From      *models.Date
	To        *models.Date
}

type ListResult struct {
	Items    []*models.Certificate `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

func (s *Service) List(ctx context.Context, userID string, p ListParams) (*ListResult, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	page, err := s.store.ListCertificates(ctx, storage.CertificateQuery{
		UserID:    userID,
		Title:     strings.TrimSpace(p.Title),
		Category:  p.Category,
		Authority: strings.TrimSpace(p.Authority),
		From:      p.From,
		To:        p.To,
		Offset:    (p.Page - 1) * p.PageSize,
		Limit:     p.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	items := page.Items
	if items == nil {
		items = []*models.Certificate{}
	}
	return &ListResult{Items: items, Total: page.Total, Page: p.Page, PageSize: p.PageSize}, nil
}

func (s *Service) Get(ctx context.Context, userID string, ids []string) ([]*models.Certificate, error) {
	return s.store.GetCertificates(ctx, userID, ids)
}

func (s *Service) Authorities(ctx context.Context, userID string) ([]string, error) {
	return s.store.ListAuthorities(ctx, userID)
}

// Update changes the editable fields only.
func (s *Service) Update(ctx context.Context, userID, id string, edit models.CertificateEdit) (*models.Certificate, error) {
	edit = edit.Normalize()
	if err := edit.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateCertificate(ctx, userID, id, edit)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventUpdate, updated, nil)
	return updated, nil
}

// DeleteRows removes metadata rows. Blobs are left to RemoveObjects.
func (s *Service) DeleteRows(ctx context.Context, userID string, ids []string) ([]*models.Certificate, error) {
	deleted, err := s.store.DeleteCertificates(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("delete certificates: %w", err)
	}
	for _, c := range deleted {
		s.publish(ctx, models.EventDelete, nil, c)
	}
	return deleted, nil
}

func ownedBy(userID, p string) bool {
	clean, err := blob.Clean(p)
	return err == nil && strings.HasPrefix(clean, userID+"/")
}

// RemoveObjects deletes blobs under the caller's folder. Every path is
// attempted; failures are joined.
func (s *Service) RemoveObjects(ctx context.Context, userID string, paths []string) error {
	var (
		allowed []string
		errs    []error
	)
	for _, p := range paths {
		if !ownedBy(userID, p) {
			errs = append(errs, fmt.Errorf("%s: %w", p, ErrForbidden))
			continue
		}
		allowed = append(allowed, p)
	}
	if len(allowed) > 0 {
		if err := s.bucket.Remove(ctx, allowed...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveURL prefers the public URL and falls back to a signed one.
func (s *Service) ResolveURL(_ context.Context, userID, p string) (string, error) {
	if !ownedBy(userID, p) {
		return "", fmt.Errorf("%s: %w", p, ErrForbidden)
	}
	if url, ok := s.bucket.PublicURL(p); ok {
		return url, nil
	}
	return s.bucket.SignedURL(p, s.config.SignedURLTTL)
}
