package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SumantSagar73/certify/pkg/helper"
	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/buntdb"
)

const (
	certificatesPrefix = "certificates"
	usersPrefix        = "users"
	emailsPrefix       = "emails"
	createdIndex       = "created_at"
)

// certRecord is the stored form; ts keeps a numeric sort key for the index.
type certRecord struct {
	Cert *models.Certificate `json:"cert"`
	TS   int64               `json:"ts"`
}

// Bunt is an embedded Store for single-node deployments and tests.
type Bunt struct {
	db     *buntdb.DB
	logger *logrus.Entry
}

func OpenBunt(path string, log *logrus.Entry) (*Bunt, error) {
	if log == nil {
		log = logger.InitLogger("info", "storage")
	}
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.CreateIndex(createdIndex, certificatesPrefix+":*", buntdb.IndexJSON("ts")); err != nil {
		db.Close()
		return nil, err
	}
	log.WithField("path", path).Debug("store: opened buntdb")
	return &Bunt{db: db, logger: log}, nil
}

func (s *Bunt) Close() error {
	return s.db.Close()
}

func certKey(id string) string {
	return fmt.Sprintf("%s:%s", certificatesPrefix, id)
}

func getCert(tx *buntdb.Tx, id string) (*models.Certificate, error) {
	raw, err := tx.Get(certKey(id))
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, fmt.Errorf("certificate %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec certRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return rec.Cert, nil
}

func setCert(tx *buntdb.Tx, c *models.Certificate) error {
	b, err := json.Marshal(certRecord{Cert: c, TS: c.CreatedAt.UnixNano()})
	if err != nil {
		return err
	}
	_, _, err = tx.Set(certKey(c.ID), string(b), nil)
	return err
}

// eachCert walks all certificates newest first.
func eachCert(tx *buntdb.Tx, fn func(*models.Certificate) bool) error {
	var decodeErr error
	err := tx.Descend(createdIndex, func(key, item string) bool {
		var rec certRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			decodeErr = fmt.Errorf("decode %s: %w", key, err)
			return false
		}
		return fn(rec.Cert)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

func sortNewestFirst(certs []*models.Certificate) {
	sort.SliceStable(certs, func(i, j int) bool {
		if !certs[i].CreatedAt.Equal(certs[j].CreatedAt) {
			return certs[i].CreatedAt.After(certs[j].CreatedAt)
		}
		return certs[i].ID > certs[j].ID
	})
}

func (s *Bunt) InsertCertificate(_ context.Context, c *models.Certificate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = helper.GetTimeNow()
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(certKey(c.ID)); err == nil {
			return fmt.Errorf("insert certificate %s: %w", c.ID, ErrConflict)
		}
		s.logger.WithField("certificate", c.ID).Debug("store: inserting certificate")
		return setCert(tx, c)
	})
}

func (s *Bunt) UpdateCertificate(_ context.Context, userID, id string, e models.CertificateEdit) (*models.Certificate, error) {
	var out *models.Certificate
	err := s.db.Update(func(tx *buntdb.Tx) error {
		c, err := getCert(tx, id)
		if err != nil {
			return err
		}
		if c.UserID != userID {
			return fmt.Errorf("certificate %s: %w", id, ErrNotFound)
		}
		c.ApplyEdit(e)
		out = c
		return setCert(tx, c)
	})
	return out, err
}

func (s *Bunt) DeleteCertificates(_ context.Context, userID string, ids []string) ([]*models.Certificate, error) {
	var deleted []*models.Certificate
	err := s.db.Update(func(tx *buntdb.Tx) error {
		for _, id := range ids {
			c, err := getCert(tx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if c.UserID != userID {
				continue
			}
			if _, err := tx.Delete(certKey(id)); err != nil {
				return err
			}
			deleted = append(deleted, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Bunt) GetCertificates(_ context.Context, userID string, ids []string) ([]*models.Certificate, error) {
	var out []*models.Certificate
	err := s.db.View(func(tx *buntdb.Tx) error {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			c, err := getCert(tx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if c.UserID == userID {
				out = append(out, c)
			}
		}
		return nil
	})
	sortNewestFirst(out)
	return out, err
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matches(c *models.Certificate, q CertificateQuery) bool {
	if c.UserID != q.UserID {
		return false
	}
	if q.Title != "" && !containsFold(c.Title, q.Title) {
		return false
	}
	if q.Category != "" && c.Category != q.Category {
		return false
	}
	if q.Authority != "" && !containsFold(c.IssuingAuthority, q.Authority) {
		return false
	}
	if q.From != nil && (c.IssueDate == nil || c.IssueDate.Before(q.From.Time)) {
		return false
	}
	if q.To != nil && (c.IssueDate == nil || c.IssueDate.After(*q.To)) {
		return false
	}
	return true
}

func (s *Bunt) ListCertificates(_ context.Context, q CertificateQuery) (*CertificatePage, error) {
	var all []*models.Certificate
	err := s.db.View(func(tx *buntdb.Tx) error {
		return eachCert(tx, func(c *models.Certificate) bool {
			if matches(c, q) {
				all = append(all, c)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)

	page := &CertificatePage{Total: len(all)}
	start := q.Offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	page.Items = all[start:end]
	return page, nil
}

func (s *Bunt) ListAuthorities(_ context.Context, userID string) ([]string, error) {
	set := make(map[string]struct{})
	err := s.db.View(func(tx *buntdb.Tx) error {
		return eachCert(tx, func(c *models.Certificate) bool {
			if c.UserID == userID && c.IssuingAuthority != "" {
				set[c.IssuingAuthority] = struct{}{}
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Bunt) ScanCertificates(_ context.Context, fn func(*models.Certificate) error) error {
	var all []*models.Certificate
	err := s.db.View(func(tx *buntdb.Tx) error {
		return eachCert(tx, func(c *models.Certificate) bool {
			all = append(all, c)
			return true
		})
	})
	if err != nil {
		return err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if err := fn(all[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Bunt) SetStoragePath(_ context.Context, id, path string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		c, err := getCert(tx, id)
		if err != nil {
			return err
		}
		c.StoragePath = path
		return setCert(tx, c)
	})
}

func (s *Bunt) ReferencedPaths(_ context.Context) (map[string]struct{}, error) {
	paths := make(map[string]struct{})
	err := s.db.View(func(tx *buntdb.Tx) error {
		return eachCert(tx, func(c *models.Certificate) bool {
			paths[c.StoragePath] = struct{}{}
			return true
		})
	})
	return paths, err
}

func (s *Bunt) FindOrCreateUser(_ context.Context, email string) (*models.User, error) {
	email = helper.NormalizeEmail(email)
	var u models.User
	err := s.db.Update(func(tx *buntdb.Tx) error {
		id, err := tx.Get(fmt.Sprintf("%s:%s", emailsPrefix, email))
		if err == nil {
			raw, err := tx.Get(fmt.Sprintf("%s:%s", usersPrefix, id))
			if err != nil {
				return err
			}
			return json.Unmarshal([]byte(raw), &u)
		}
		if !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}

		u = models.User{ID: uuid.NewString(), Email: email, CreatedAt: helper.GetTimeNow()}
		b, err := json.Marshal(u)
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(fmt.Sprintf("%s:%s", usersPrefix, u.ID), string(b), nil); err != nil {
			return err
		}
		_, _, err = tx.Set(fmt.Sprintf("%s:%s", emailsPrefix, email), u.ID, nil)
		s.logger.WithField("user", u.ID).Info("store: created user")
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Bunt) GetUser(_ context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(fmt.Sprintf("%s:%s", usersPrefix, id))
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}
