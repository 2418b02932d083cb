package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/SumantSagar73/certify/server/storage/models"
)

const owner = "user-1"

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func cert(id string, minute int) *models.Certificate {
	return &models.Certificate{
		ID:          id,
		UserID:      owner,
		Title:       "Cert " + id,
		StoragePath: owner + "/" + id + ".pdf",
		FileName:    id + ".pdf",
		MimeType:    "application/pdf",
		IsPrivate:   true,
		CreatedAt:   base.Add(time.Duration(minute) * time.Minute),
	}
}

type fakeBackend struct {
	mu    sync.Mutex
	rows  map[string]*models.Certificate
	blobs map[string][]byte

	listCalls   []certificates.ListParams
	getCalls    int
	uploadCalls int
	deleteCalls [][]string
	removeCalls [][]string

	deleteErr  error
	failRemove map[string]bool
	failFetch  map[string]bool
	// lagging ids are left out of List and Get the given number of times
	lagging map[string]int
	// listGate, when set, is consulted before List answers
	listGate func(p certificates.ListParams)
	handler  func(models.ChangeEvent)
	nextID   int
}

func newFake(rows ...*models.Certificate) *fakeBackend {
	f := &fakeBackend{
		rows:       make(map[string]*models.Certificate),
		blobs:      make(map[string][]byte),
		failRemove: make(map[string]bool),
		failFetch:  make(map[string]bool),
		lagging:    make(map[string]int),
	}
	for _, r := range rows {
		f.rows[r.ID] = r
		f.blobs[r.StoragePath] = []byte("content of " + r.ID)
	}
	return f
}

func (f *fakeBackend) sorted() []*models.Certificate {
	out := make([]*models.Certificate, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeBackend) List(_ context.Context, p certificates.ListParams) (*certificates.ListResult, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, p)
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		gate(p)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*models.Certificate
	for _, r := range f.sorted() {
		if f.lagging[r.ID] > 0 {
			continue
		}
		if p.Title != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(p.Title)) {
			continue
		}
		if p.Category != "" && r.Category != p.Category {
			continue
		}
		matched = append(matched, r)
	}
	size := p.PageSize
	start := (p.Page - 1) * size
	end := start + size
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	return &certificates.ListResult{Items: matched[start:end], Total: len(matched), Page: p.Page, PageSize: size}, nil
}

func (f *fakeBackend) Get(_ context.Context, ids []string) ([]*models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	var out []*models.Certificate
	for _, id := range ids {
		if f.lagging[id] > 0 {
			f.lagging[id]--
			continue
		}
		if r, ok := f.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBackend) Update(_ context.Context, id string, edit models.CertificateEdit) (*models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := r.Clone()
	cp.ApplyEdit(edit)
	f.rows[id] = cp
	return cp, nil
}

func (f *fakeBackend) DeleteRows(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, ids)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, id := range ids {
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeBackend) RemoveBlobs(_ context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, paths)
	for _, p := range paths {
		if f.failRemove[p] {
			return fmt.Errorf("%s: %w", p, errors.New("bucket unavailable"))
		}
		delete(f.blobs, p)
	}
	return nil
}

func (f *fakeBackend) ResolveURL(_ context.Context, p string) (string, error) {
	return "mem://" + p, nil
}

func (f *fakeBackend) Fetch(_ context.Context, rawURL string) (io.ReadCloser, error) {
	p := strings.TrimPrefix(rawURL, "mem://")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch[p] {
		return nil, errors.New("connection reset")
	}
	b, ok := f.blobs[p]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (f *fakeBackend) Upload(_ context.Context, in certificates.UploadInput) (*certificates.UploadResult, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	f.nextID++
	c := cert(fmt.Sprintf("new-%d", f.nextID), 1000+f.nextID)
	c.FileName = in.FileName
	c.ApplyEdit(in.Edit)
	f.rows[c.ID] = c
	f.blobs[c.StoragePath] = body
	return &certificates.UploadResult{Certificate: c, URL: "mem://" + c.StoragePath}, nil
}

func (f *fakeBackend) Subscribe(_ context.Context, _ string, fn func(models.ChangeEvent)) (func(), error) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.handler = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeBackend) emit(evt models.ChangeEvent) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(evt)
	}
}

func (f *fakeBackend) counts() (list, deletes, removes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls), len(f.deleteCalls), len(f.removeCalls)
}

func (f *fakeBackend) lastList() certificates.ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[len(f.listCalls)-1]
}

func testOptions() Options {
	return Options{
		UserID:        owner,
		UndoWindow:    time.Hour,
		Debounce:      40 * time.Millisecond,
		VerifyBackoff: 5 * time.Millisecond,
		Logger:        logger.Discard(),
	}
}

func ids(items []*models.Certificate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.ID
	}
	return out
}
