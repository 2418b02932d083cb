package dashboard

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestBulkDeleteLenient(t *testing.T) {
	f := newFake(manyCerts(4)...)
	f.failRemove[owner+"/b.pdf"] = true
	d := started(t, f, testOptions())

	d.Select("b")
	d.Select("c")
	report, err := d.BulkDelete(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, report.Deleted)
	require.Error(t, report.BlobErrors)
	assert.Contains(t, report.BlobErrors.Error(), "Cert b")

	s := d.State()
	assert.Equal(t, []string{"d", "a"}, ids(s.Items))
	assert.Equal(t, 2, s.Total)
	assert.Empty(t, s.Selected())

	f.mu.Lock()
	assert.Equal(t, [][]string{{"b", "c"}}, f.deleteCalls)
	f.mu.Unlock()

	f.emit(models.ChangeEvent{Type: models.EventDelete, Old: cert("b", 1)})
	assert.Equal(t, 2, d.State().Total)
}

func TestBulkDeleteReportsMissing(t *testing.T) {
	f := newFake(manyCerts(4)...)
	d := started(t, f, testOptions())

	d.Select("b")
	d.Select("c")
	f.mu.Lock()
	delete(f.rows, "c")
	f.mu.Unlock()

	report, err := d.BulkDelete(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, report.Deleted)
	assert.Equal(t, []string{"c"}, report.Missing)
	assert.NoError(t, report.BlobErrors)

	f.mu.Lock()
	assert.Equal(t, [][]string{{"b"}}, f.deleteCalls)
	f.mu.Unlock()
	s := d.State()
	assert.Equal(t, []string{"d", "a"}, ids(s.Items))
	assert.Equal(t, 2, s.Total)
}

func TestBulkDeleteStrictAbortsBeforeRows(t *testing.T) {
	f := newFake(manyCerts(3)...)
	f.failRemove[owner+"/a.pdf"] = true
	d := started(t, f, testOptions())

	d.SelectPage()
	_, err := d.BulkDelete(context.Background(), true)
	require.Error(t, err)

	_, dels, _ := f.counts()
	assert.Zero(t, dels)
	assert.Len(t, d.State().Items, 3)
	assert.Len(t, d.State().Selected(), 3, "selection kept for a retry")
}

func TestBulkRequiresSelection(t *testing.T) {
	d := started(t, newFake(), testOptions())
	_, err := d.BulkDelete(context.Background(), false)
	assert.ErrorIs(t, err, ErrNothingSelected)
	_, err = d.BulkDownload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNothingSelected)
}

func TestBulkDownloadSkipsFailures(t *testing.T) {
	certs := manyCerts(3)
	certs[1].FileName = certs[0].FileName
	f := newFake(certs...)
	f.failFetch[owner+"/c.pdf"] = true
	d := started(t, f, testOptions())
	d.SelectPage()

	var out bufCloser
	var name string
	report, err := d.BulkDownload(context.Background(), func(n string) (io.WriteCloser, error) {
		name = n
		return &out, nil
	})
	require.NoError(t, err)
	assert.True(t, out.closed)
	assert.Regexp(t, `^certificates_\d+\.zip$`, name)
	assert.Equal(t, name, report.Archive)
	require.Error(t, report.Failed)
	assert.Equal(t, []string{"a.pdf", "a (2).pdf"}, report.Files)

	zr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "content of b", string(body))
}

func TestBulkDownloadNothingFetched(t *testing.T) {
	f := newFake(manyCerts(2)...)
	f.failFetch[owner+"/a.pdf"] = true
	f.failFetch[owner+"/b.pdf"] = true
	d := started(t, f, testOptions())
	d.SelectPage()

	opened := false
	report, err := d.BulkDownload(context.Background(), func(string) (io.WriteCloser, error) {
		opened = true
		return &bufCloser{}, nil
	})
	assert.ErrorIs(t, err, ErrNothingToDownload)
	assert.False(t, opened, "no archive when nothing arrived")
	require.NotNil(t, report)
	assert.Error(t, report.Failed)
}

func TestEntryNameFallbacks(t *testing.T) {
	taken := map[string]int{}
	c := cert("x", 0)
	assert.Equal(t, "x.pdf", entryName(c, taken))
	assert.Equal(t, "x (2).pdf", entryName(c, taken))

	c.FileName = ""
	assert.Equal(t, "x (3).pdf", entryName(c, taken), "falls back to the stored path")

	c.FileName = `C:\scans\y.png`
	assert.Equal(t, "y.png", entryName(c, taken))
}

func TestArchiveName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "certificates_1700000000123.zip", ArchiveName(at))
}
