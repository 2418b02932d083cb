package certificates

import (
	"context"

	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/sirupsen/logrus"
)

type PathFix struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

type MigrationReport struct {
	Checked    int       `json:"checked"`
	Fixed      []PathFix `json:"fixed"`
	Unresolved []string  `json:"unresolved"`
}

// MigratePaths rewrites rows whose storage_path does not name an existing
// object to the first candidate derivation that does. It is meant to run
// once, offline; the live delete path never guesses.
func MigratePaths(ctx context.Context, store storage.Store, bucket *blob.Bucket, dryRun bool, log *logrus.Entry) (*MigrationReport, error) {
	report := &MigrationReport{}
	err := store.ScanCertificates(ctx, func(c *models.Certificate) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Checked++
		if ok, err := bucket.Exists(c.StoragePath); err != nil {
			return err
		} else if ok {
			return nil
		}

		for _, candidate := range blob.PathCandidates(c.StoragePath, bucket.Name()) {
			clean, err := blob.Clean(candidate)
			if err != nil {
				continue
			}
			ok, err := bucket.Exists(clean)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			fix := PathFix{ID: c.ID, From: c.StoragePath, To: clean}
			if !dryRun {
				if err := store.SetStoragePath(ctx, c.ID, clean); err != nil {
					return err
				}
			}
			log.WithField("certificate", c.ID).WithField("to", clean).Info("migrate: storage path rewritten")
			report.Fixed = append(report.Fixed, fix)
			return nil
		}
		log.WithField("certificate", c.ID).WithField("path", c.StoragePath).Warn("migrate: no candidate exists")
		report.Unresolved = append(report.Unresolved, c.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
