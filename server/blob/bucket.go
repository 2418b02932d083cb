package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrExists      = errors.New("object already exists")
	ErrNotFound    = errors.New("object not found")
	ErrTooLarge    = errors.New("object too large")
	ErrInvalidPath = errors.New("invalid object path")
)

type Options struct {
	Name      string
	Public    bool
	PublicURL string
	Signer    *Signer
}

// Bucket is a flat object namespace on top of an afero filesystem.
type Bucket struct {
	fs     afero.Fs
	name   string
	public bool
	base   string
	signer *Signer
}

// NewOsBucket roots a bucket at dir on the local disk.
func NewOsBucket(dir string, opts Options) (*Bucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), opts), nil
}

func New(fs afero.Fs, opts Options) *Bucket {
	return &Bucket{
		fs:     fs,
		name:   opts.Name,
		public: opts.Public,
		base:   strings.TrimRight(opts.PublicURL, "/"),
		signer: opts.Signer,
	}
}

func (b *Bucket) Name() string {
	return b.name
}

// Clean validates an object path and returns its canonical form.
func Clean(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
		}
	}
	c := path.Clean(p)
	if c == "." || c == "/" {
		return "", ErrInvalidPath
	}
	return c, nil
}

func fsPath(p string) string {
	return "/" + p
}

// Upload stores r under p unless p already exists. At most maxSize bytes are
// accepted when maxSize > 0.
func (b *Bucket) Upload(ctx context.Context, p string, r io.Reader, maxSize int64) (int64, error) {
	p, err := Clean(p)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := b.fs.MkdirAll(path.Dir(fsPath(p)), 0o755); err != nil {
		return 0, err
	}
	f, err := b.fs.OpenFile(fsPath(p), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%s: %w", p, ErrExists)
		}
		return 0, err
	}

	src := r
	if maxSize > 0 {
		src = io.LimitReader(r, maxSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxSize > 0 && n > maxSize {
		err = fmt.Errorf("%s: %w", p, ErrTooLarge)
	}
	if err != nil {
		_ = b.fs.Remove(fsPath(p))
		return 0, err
	}
	return n, nil
}

// Remove deletes every path. Each failure is reported; the rest proceed.
func (b *Bucket) Remove(ctx context.Context, paths ...string) error {
	var errs []error
	for _, raw := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p, err := Clean(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ok, err := afero.Exists(b.fs, fsPath(p))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", p, ErrNotFound))
			continue
		}
		if err := b.fs.Remove(fsPath(p)); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bucket) Open(p string) (afero.File, os.FileInfo, error) {
	p, err := Clean(p)
	if err != nil {
		return nil, nil, err
	}
	f, err := b.fs.Open(fsPath(p))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return f, info, nil
}

func (b *Bucket) Exists(p string) (bool, error) {
	p, err := Clean(p)
	if err != nil {
		return false, nil
	}
	info, err := b.fs.Stat(fsPath(p))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Walk calls fn for every stored object.
func (b *Bucket) Walk(fn func(p string, info os.FileInfo) error) error {
	return afero.Walk(b.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		return fn(strings.TrimPrefix(path.Clean("/"+p), "/"), info)
	})
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// PublicURL is only available for public buckets.
func (b *Bucket) PublicURL(p string) (string, bool) {
	if !b.public {
		return "", false
	}
	p, err := Clean(p)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.base, b.name, escapePath(p)), true
}

func (b *Bucket) IsPublic() bool {
	return b.public
}
