package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// CertificateQuery selects one page of a user's certificates. Zero values
// mean "no filter".
type CertificateQuery struct {
	UserID    string
	Title     string
	Category  string
	Authority string
	From      *models.Date
	To        *models.Date
	Offset    int
	Limit     int
}

type CertificatePage struct {
	Items []*models.Certificate
	Total int
}

type Store interface {
	InsertCertificate(ctx context.Context, c *models.Certificate) error
	UpdateCertificate(ctx context.Context, userID, id string, edit models.CertificateEdit) (*models.Certificate, error)
	DeleteCertificates(ctx context.Context, userID string, ids []string) ([]*models.Certificate, error)
	GetCertificates(ctx context.Context, userID string, ids []string) ([]*models.Certificate, error)
	ListCertificates(ctx context.Context, q CertificateQuery) (*CertificatePage, error)
	ListAuthorities(ctx context.Context, userID string) ([]string, error)
	ScanCertificates(ctx context.Context, fn func(*models.Certificate) error) error
	SetStoragePath(ctx context.Context, id, path string) error
	ReferencedPaths(ctx context.Context) (map[string]struct{}, error)

	FindOrCreateUser(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)

	Close() error
}

type Options struct {
	Driver string
	Path   string
	DSN    string
	Log    *logrus.Entry
}

// Open returns the store selected by opts.Driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "postgres":
		return OpenPostgres(opts.DSN, opts.Log)
	case "buntdb", "":
		return OpenBunt(opts.Path, opts.Log)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}
