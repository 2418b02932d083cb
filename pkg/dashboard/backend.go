package dashboard

import (
	"context"
	"io"

	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/storage/models"
)

// Backend is what the dashboard needs from the server. *client.Client
// implements it.
type Backend interface {
	List(ctx context.Context, p certificates.ListParams) (*certificates.ListResult, error)
	Get(ctx context.Context, ids []string) ([]*models.Certificate, error)
	Update(ctx context.Context, id string, edit models.CertificateEdit) (*models.Certificate, error)
	DeleteRows(ctx context.Context, ids []string) error
	RemoveBlobs(ctx context.Context, paths []string) error
	ResolveURL(ctx context.Context, path string) (string, error)
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
	Upload(ctx context.Context, in certificates.UploadInput) (*certificates.UploadResult, error)
	Subscribe(ctx context.Context, table string, fn func(models.ChangeEvent)) (func(), error)
}
