package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/SumantSagar73/certify/pkg/helper"
	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/server/config"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const certificateColumns = `id, user_id, title, issuing_authority, category, notes, issue_date, expiry_date,
	is_private, storage_path, file_name, file_size, mime_type, created_at`

type Postgres struct {
	db  *sql.DB
	log *logrus.Entry
}

func OpenPostgres(uri string, log *logrus.Entry) (*Postgres, error) {
	if log == nil {
		log = logger.InitLogger("info", "storage")
	}
	db, err := sql.Open("postgres", uri)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		log.Error(err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		log.WithError(err).Error("apply schema")
		db.Close()
		return nil, err
	}
	log.Info("Connected to postgres database")
	return &Postgres{db: db, log: log}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner, extra ...any) (*models.Certificate, error) {
	var (
		c             models.Certificate
		issue, expiry sql.NullTime
	)
	dest := []any{
		&c.ID, &c.UserID, &c.Title, &c.IssuingAuthority, &c.Category, &c.Notes, &issue, &expiry,
		&c.IsPrivate, &c.StoragePath, &c.FileName, &c.FileSize, &c.MimeType, &c.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if issue.Valid {
		d := models.DateOf(issue.Time)
		c.IssueDate = &d
	}
	if expiry.Valid {
		d := models.DateOf(expiry.Time)
		c.ExpiryDate = &d
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func dateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// likePattern escapes LIKE wildcards so user input matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func (p *Postgres) InsertCertificate(ctx context.Context, c *models.Certificate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = helper.GetTimeNow()
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		config.CertificatesTB, certificateColumns)
	_, err := p.db.ExecContext(ctx, q,
		c.ID, c.UserID, c.Title, c.IssuingAuthority, c.Category, c.Notes,
		dateArg(c.IssueDate), dateArg(c.ExpiryDate), c.IsPrivate,
		c.StoragePath, c.FileName, c.FileSize, c.MimeType, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("insert certificate %s: %w", c.ID, ErrConflict)
		}
		p.log.WithError(err).Error("insert certificate")
		return err
	}
	return nil
}

func (p *Postgres) UpdateCertificate(ctx context.Context, userID, id string, e models.CertificateEdit) (*models.Certificate, error) {
	q := fmt.Sprintf(`UPDATE %s SET title = $3, issuing_authority = $4, category = $5, notes = $6,
		issue_date = $7, expiry_date = $8, is_private = $9
		WHERE id = $1 AND user_id = $2
		RETURNING %s`, config.CertificatesTB, certificateColumns)
	c, err := scanCertificate(p.db.QueryRowContext(ctx, q, id, userID,
		e.Title, e.IssuingAuthority, e.Category, e.Notes,
		dateArg(e.IssueDate), dateArg(e.ExpiryDate), e.IsPrivate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("certificate %s: %w", id, ErrNotFound)
	}
	if err != nil {
		p.log.WithError(err).Error("update certificate")
		return nil, err
	}
	return c, nil
}

func (p *Postgres) queryCertificates(ctx context.Context, q string, args ...any) ([]*models.Certificate, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		p.log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var certs []*models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return certs, nil
}

func (p *Postgres) DeleteCertificates(ctx context.Context, userID string, ids []string) ([]*models.Certificate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND id::text = ANY($2) RETURNING %s`,
		config.CertificatesTB, certificateColumns)
	return p.queryCertificates(ctx, q, userID, pq.Array(ids))
}

func (p *Postgres) GetCertificates(ctx context.Context, userID string, ids []string) ([]*models.Certificate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 AND id::text = ANY($2) ORDER BY created_at DESC, id DESC`,
		certificateColumns, config.CertificatesTB)
	return p.queryCertificates(ctx, q, userID, pq.Array(ids))
}

func (p *Postgres) ListCertificates(ctx context.Context, cq CertificateQuery) (*CertificatePage, error) {
	var (
		where  []string
		values []any
	)
	add := func(cond string, v any) {
		values = append(values, v)
		where = append(where, fmt.Sprintf(cond, len(values)))
	}
	add("user_id = $%d", cq.UserID)
	if cq.Title != "" {
		add("title ILIKE $%d", likePattern(cq.Title))
	}
	if cq.Category != "" {
		add("category = $%d", cq.Category)
	}
	if cq.Authority != "" {
		add("issuing_authority ILIKE $%d", likePattern(cq.Authority))
	}
	if cq.From != nil {
		add("issue_date >= $%d", cq.From.String())
	}
	if cq.To != nil {
		add("issue_date <= $%d", cq.To.String())
	}

	q := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM %s WHERE %s ORDER BY created_at DESC, id DESC`,
		certificateColumns, config.CertificatesTB, strings.Join(where, " AND "))
	if cq.Limit > 0 {
		values = append(values, cq.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(values))
	}
	if cq.Offset > 0 {
		values = append(values, cq.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(values))
	}

	rows, err := p.db.QueryContext(ctx, q, values...)
	if err != nil {
		p.log.WithError(err).Error("list certificates")
		return nil, err
	}
	defer rows.Close()

	page := &CertificatePage{}
	for rows.Next() {
		c, err := scanCertificate(rows, &page.Total)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(page.Items) == 0 && cq.Offset > 0 {
		// Window count is unavailable past the last row.
		countQ := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, config.CertificatesTB, strings.Join(where, " AND "))
		n := len(where)
		if err := p.db.QueryRowContext(ctx, countQ, values[:n]...).Scan(&page.Total); err != nil {
			return nil, err
		}
	}
	return page, nil
}

func (p *Postgres) ListAuthorities(ctx context.Context, userID string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT issuing_authority FROM %s
		WHERE user_id = $1 AND issuing_authority <> '' ORDER BY issuing_authority`, config.CertificatesTB)
	rows, err := p.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) ScanCertificates(ctx context.Context, fn func(*models.Certificate) error) error {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at`, certificateColumns, config.CertificatesTB)
	certs, err := p.queryCertificates(ctx, q)
	if err != nil {
		return err
	}
	for _, c := range certs {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) SetStoragePath(ctx context.Context, id, path string) error {
	q := fmt.Sprintf(`UPDATE %s SET storage_path = $2 WHERE id = $1`, config.CertificatesTB)
	res, err := p.db.ExecContext(ctx, q, id, path)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("certificate %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) ReferencedPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT storage_path FROM %s`, config.CertificatesTB))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		paths[s] = struct{}{}
	}
	return paths, rows.Err()
}

func (p *Postgres) FindOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	email = helper.NormalizeEmail(email)
	var u models.User
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, created_at`,
		uuid.NewString(), email, helper.GetTimeNow()).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		p.log.WithError(err).Error("find or create user")
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx, `SELECT id, email, created_at FROM users WHERE id::text = $1`, id).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
