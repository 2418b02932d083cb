package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/klauspost/compress/zip"
	"github.com/panjf2000/ants"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNothingSelected   = errors.New("no certificates selected")
	ErrNothingToDownload = errors.New("none of the selected certificates could be downloaded")
)

type BulkDeleteReport struct {
	Deleted []string
	// Missing holds selected ids the backend no longer had.
	Missing []string
	// BlobErrors holds blob removals that failed in lenient mode.
	BlobErrors error
}

// BulkDelete removes the blobs of every selected record, then the rows in
// one call. When strict, the first blob failure aborts before any row is
// touched; otherwise blob failures are collected in the report.
func (d *Dashboard) BulkDelete(ctx context.Context, strict bool) (*BulkDeleteReport, error) {
	ids := d.State().Selected()
	if len(ids) == 0 {
		return nil, ErrNothingSelected
	}
	records, err := d.backend.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}

	var (
		mu       sync.Mutex
		blobErrs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, c := range records {
		if c.StoragePath == "" {
			continue
		}
		p, name := c.StoragePath, c.DisplayName()
		g.Go(func() error {
			err := d.backend.RemoveBlobs(gctx, []string{p})
			if err == nil {
				return nil
			}
			err = fmt.Errorf("remove file of %q: %w", name, err)
			if strict {
				return err
			}
			mu.Lock()
			blobErrs = append(blobErrs, err)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	loaded := make(map[string]bool, len(records))
	for _, c := range records {
		loaded[c.ID] = true
	}
	report := &BulkDeleteReport{BlobErrors: errors.Join(blobErrs...)}
	for _, id := range ids {
		if loaded[id] {
			report.Deleted = append(report.Deleted, id)
		} else {
			report.Missing = append(report.Missing, id)
		}
	}
	if report.BlobErrors != nil {
		d.log.WithError(report.BlobErrors).WithField("failed", len(blobErrs)).Warn("bulk delete left files behind")
	}
	if len(report.Missing) > 0 {
		d.log.WithField("ids", report.Missing).Warn("bulk delete: selected certificates already gone")
	}

	if len(report.Deleted) > 0 {
		if err := d.backend.DeleteRows(ctx, report.Deleted); err != nil {
			return nil, fmt.Errorf("delete certificates: %w", err)
		}
	}

	d.mu.Lock()
	next := d.state
	for _, id := range ids {
		var removed *models.Certificate
		next, removed, _ = next.Remove(id)
		if removed == nil && loaded[id] && next.Total > 0 {
			next.Total--
		}
		d.settled[id] = struct{}{}
	}
	for _, c := range records {
		delete(d.urls, c.StoragePath)
	}
	d.set(next.ClearSelection())
	d.mu.Unlock()
	d.log.WithField("count", len(report.Deleted)).Info("bulk delete done")
	return report, nil
}

type DownloadReport struct {
	Archive string
	Files   []string
	// Failed holds one error per record that could not be fetched.
	Failed error
}

// ArchiveName is the file name used for a bulk download made at now.
func ArchiveName(now time.Time) string {
	return fmt.Sprintf("certificates_%d.zip", now.UnixMilli())
}

// entryName is the file name, else the last path segment, made unique
// against taken.
func entryName(c *models.Certificate, taken map[string]int) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(c.FileName, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = path.Base(c.StoragePath)
	}
	if name == "" || name == "." || name == "/" {
		name = c.ID
	}
	n := taken[name]
	taken[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	unique := fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n+1, ext)
	taken[unique]++
	return unique
}

type fetchJob struct {
	ctx  context.Context
	cert *models.Certificate
	buf  *bytebufferpool.ByteBuffer
	err  error
	wg   *sync.WaitGroup
}

func (d *Dashboard) fetchInto(job *fetchJob) {
	defer job.wg.Done()
	url, err := d.URL(job.ctx, job.cert)
	if err != nil {
		job.err = err
		return
	}
	body, err := d.backend.Fetch(job.ctx, url)
	if err != nil {
		job.err = fmt.Errorf("fetch %q: %w", job.cert.DisplayName(), err)
		return
	}
	defer body.Close()
	buf := bytebufferpool.Get()
	if _, err := buf.ReadFrom(body); err != nil {
		bytebufferpool.Put(buf)
		job.err = fmt.Errorf("read %q: %w", job.cert.DisplayName(), err)
		return
	}
	job.buf = buf
}

// BulkDownload fetches every selected record and zips the ones that
// arrived. open is called with the archive name only when at least one
// file made it.
func (d *Dashboard) BulkDownload(ctx context.Context, open func(name string) (io.WriteCloser, error)) (*DownloadReport, error) {
	ids := d.State().Selected()
	if len(ids) == 0 {
		return nil, ErrNothingSelected
	}
	records, err := d.backend.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	jobs := make([]*fetchJob, len(records))

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(d.opts.Workers, func(arg interface{}) {
		d.fetchInto(arg.(*fetchJob))
	}, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	for i, c := range records {
		jobs[i] = &fetchJob{ctx: ctx, cert: c, wg: &wg}
		wg.Add(1)
		if err := pool.Invoke(jobs[i]); err != nil {
			jobs[i].err = err
			wg.Done()
		}
	}
	wg.Wait()
	defer func() {
		for _, j := range jobs {
			if j.buf != nil {
				bytebufferpool.Put(j.buf)
			}
		}
	}()

	// keep the selection order in the archive
	slices.SortStableFunc(jobs, func(a, b *fetchJob) int {
		return order[a.cert.ID] - order[b.cert.ID]
	})

	report := &DownloadReport{Archive: ArchiveName(time.Now())}
	var (
		failed []error
		ok     int
	)
	for _, j := range jobs {
		if j.err != nil {
			failed = append(failed, j.err)
			continue
		}
		ok++
	}
	if missing := len(ids) - len(records); missing > 0 {
		failed = append(failed, fmt.Errorf("%d selected certificates no longer exist", missing))
	}
	report.Failed = errors.Join(failed...)
	if report.Failed != nil {
		d.log.WithError(report.Failed).WithField("failed", len(failed)).Warn("bulk download skipped files")
	}
	if ok == 0 {
		return report, ErrNothingToDownload
	}

	w, err := open(report.Archive)
	if err != nil {
		return report, err
	}
	zw := zip.NewWriter(w)
	taken := make(map[string]int)
	for _, j := range jobs {
		if j.err != nil {
			continue
		}
		name := entryName(j.cert, taken)
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: j.cert.CreatedAt,
		})
		if err != nil {
			w.Close()
			return report, err
		}
		if _, err := fw.Write(j.buf.B); err != nil {
			w.Close()
			return report, err
		}
		report.Files = append(report.Files, name)
	}
	if err := zw.Close(); err != nil {
		w.Close()
		return report, err
	}
	return report, w.Close()
}
