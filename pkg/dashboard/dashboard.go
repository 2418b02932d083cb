package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SumantSagar73/certify/pkg/client"
	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/pkg/orderedmap"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/config"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultUndoWindow     = 7 * time.Second
	DefaultVerifyAttempts = 6
	DefaultVerifyBackoff  = time.Second
	DefaultURLTTL         = 30 * time.Minute
)

var (
	ErrNotListed = errors.New("certificate is not in the current list")
	ErrClosed    = errors.New("dashboard closed")
)

type Options struct {
	UserID         string
	PageSize       int
	Debounce       time.Duration
	UndoWindow     time.Duration
	VerifyAttempts int
	VerifyBackoff  time.Duration
	URLTTL         time.Duration
	MaxFileSize    int64
	Workers        int
	Logger         *logrus.Entry
	// OnChange receives a copy of the state after every transition. It
	// runs under the dashboard lock and must not call back into it.
	OnChange func(State)
	// OnError receives backend failures of background work: committed
	// deletes, debounced fetches, live updates.
	OnError func(error)
}

func (o *Options) defaults() {
	if o.PageSize <= 0 {
		o.PageSize = certificates.DefaultPageSize
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.UndoWindow <= 0 {
		o.UndoWindow = DefaultUndoWindow
	}
	if o.VerifyAttempts <= 0 {
		o.VerifyAttempts = DefaultVerifyAttempts
	}
	if o.VerifyBackoff <= 0 {
		o.VerifyBackoff = DefaultVerifyBackoff
	}
	if o.URLTTL <= 0 {
		o.URLTTL = DefaultURLTTL
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = certificates.DefaultMaxFileSize
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Logger == nil {
		o.Logger = logger.InitLogger("info", "dashboard")
	}
}

// pendingDelete remembers where a record was hidden from: its position,
// the page and applied filters of that view, and whether the total the view
// shows still counts it.
type pendingDelete struct {
	cert    *models.Certificate
	index   int
	page    int
	filters Filters
	counted bool
	timer   *time.Timer
}

type cachedURL struct {
	url     string
	expires time.Time
}

// Dashboard keeps one page of the signed-in user's certificates in sync
// with the backend.
type Dashboard struct {
	backend Backend
	opts    Options
	log     *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	gen         uint64
	searchTerm  string
	searchTimer *time.Timer
	searchGen   uint64
	pending     orderedmap.OrderedMap[string, *pendingDelete]
	settled     map[string]struct{}
	urls        map[string]cachedURL
	unsubscribe func()
	closed      bool
}

func New(backend Backend, opts Options) *Dashboard {
	opts.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		backend: backend,
		opts:    opts,
		log:     opts.Logger.WithField("user", opts.UserID),
		ctx:     ctx,
		cancel:  cancel,
		state:   NewState(),
		pending: orderedmap.New[string, *pendingDelete](),
		settled: make(map[string]struct{}),
		urls:    make(map[string]cachedURL),
	}
}

// Start loads the first page and follows the change feed.
func (d *Dashboard) Start(ctx context.Context) error {
	if err := d.Refresh(ctx); err != nil {
		return err
	}
	unsubscribe, err := d.backend.Subscribe(d.ctx, config.CertificatesTB, d.HandleEvent)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	d.unsubscribe = unsubscribe
	d.mu.Unlock()
	return nil
}

// State returns a copy of the current state.
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// SearchInput is the raw, not yet applied, search box text.
func (d *Dashboard) SearchInput() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searchTerm
}

// set installs next and notifies. Callers hold d.mu.
func (d *Dashboard) set(next State) {
	d.state = next
	if d.opts.OnChange != nil {
		d.opts.OnChange(next.Clone())
	}
}

func (d *Dashboard) report(err error) {
	if err == nil || errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		return
	}
	d.log.WithError(err).Warn("dashboard background operation failed")
	if d.opts.OnError != nil {
		d.opts.OnError(err)
	}
}

// hidden reports ids that must not show up in fetched pages. Callers hold d.mu.
func (d *Dashboard) hidden(id string) bool {
	return d.pending.Exists(id)
}

// ignored reports ids whose change events are already accounted for.
// Callers hold d.mu.
func (d *Dashboard) ignored(id string) bool {
	if d.pending.Exists(id) {
		return true
	}
	_, ok := d.settled[id]
	return ok
}

// Refresh fetches the current page with the applied filters. A response
// that was overtaken by a newer fetch is dropped.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.gen++
	gen := d.gen
	params := d.state.Filters.Params(d.state.Page, d.opts.PageSize)
	d.mu.Unlock()

	res, err := d.backend.List(ctx, params)
	if err != nil {
		return fmt.Errorf("list certificates: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.closed {
		d.log.WithField("generation", gen).Debug("stale page dropped")
		return nil
	}
	d.set(d.state.WithResult(res, d.hidden))
	onPage := make(map[string]bool, len(res.Items))
	for _, c := range res.Items {
		onPage[c.ID] = true
	}
	_ = d.pending.Range(func(id string, p *pendingDelete) error {
		if p.filters.Equal(d.state.Filters) {
			p.counted = !onPage[id]
		}
		return nil
	})
	return nil
}

// refreshAsync refetches in the background. Callers hold d.mu.
func (d *Dashboard) refreshAsync() {
	if d.closed {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Refresh(d.ctx); err != nil {
			d.report(err)
		}
	}()
}

func (d *Dashboard) SetPage(ctx context.Context, page int) error {
	d.mu.Lock()
	next := d.state.WithPage(page)
	if next.Page == d.state.Page {
		d.mu.Unlock()
		return nil
	}
	d.set(next)
	d.mu.Unlock()
	return d.Refresh(ctx)
}

func (d *Dashboard) NextPage(ctx context.Context) error {
	return d.SetPage(ctx, d.State().Page+1)
}

func (d *Dashboard) PrevPage(ctx context.Context) error {
	return d.SetPage(ctx, d.State().Page-1)
}

// SetFilters applies f immediately, keeping the applied title term. The
// page goes back to 1.
func (d *Dashboard) SetFilters(ctx context.Context, f Filters) error {
	if err := models.ValidateDates(f.From, f.To); err != nil {
		return err
	}
	d.mu.Lock()
	f.Title = d.state.Filters.Title
	if f.Equal(d.state.Filters) {
		d.mu.Unlock()
		return nil
	}
	d.set(d.state.WithFilters(f))
	d.mu.Unlock()
	return d.Refresh(ctx)
}

// Apply replaces filters and page in one step, title included, and
// fetches.
func (d *Dashboard) Apply(ctx context.Context, f Filters, page int) error {
	if err := models.ValidateDates(f.From, f.To); err != nil {
		return err
	}
	d.mu.Lock()
	d.stopSearchTimer()
	d.searchGen++
	d.searchTerm = f.Title
	d.set(d.state.WithFilters(f).WithPage(page))
	d.mu.Unlock()
	return d.Refresh(ctx)
}

// Adopt lists records fetched elsewhere, as a live insert would.
func (d *Dashboard) Adopt(certs ...*models.Certificate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := d.state
	for _, c := range certs {
		if c.UserID != d.opts.UserID || d.ignored(c.ID) {
			continue
		}
		next = next.Upsert(c)
	}
	d.set(next)
}

// TypeSearch records the search box text. It becomes the applied title
// filter once no further input arrives for the debounce interval.
func (d *Dashboard) TypeSearch(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.searchTerm = term
	d.stopSearchTimer()
	d.searchGen++
	gen := d.searchGen
	d.wg.Add(1)
	d.searchTimer = time.AfterFunc(d.opts.Debounce, func() {
		defer d.wg.Done()
		d.applySearch(gen)
	})
}

// stopSearchTimer cancels a pending debounce. Callers hold d.mu.
func (d *Dashboard) stopSearchTimer() {
	if d.searchTimer != nil && d.searchTimer.Stop() {
		d.wg.Done()
	}
	d.searchTimer = nil
}

func (d *Dashboard) applySearch(gen uint64) {
	d.mu.Lock()
	if d.closed || d.searchGen != gen {
		d.mu.Unlock()
		return
	}
	d.searchTimer = nil
	f := d.state.Filters
	f.Title = d.searchTerm
	if f.Equal(d.state.Filters) {
		d.mu.Unlock()
		return
	}
	d.set(d.state.WithFilters(f))
	d.mu.Unlock()

	d.report(d.Refresh(d.ctx))
}

// FlushSearch applies pending search input without waiting.
func (d *Dashboard) FlushSearch(ctx context.Context) error {
	d.mu.Lock()
	d.stopSearchTimer()
	d.searchGen++
	f := d.state.Filters
	f.Title = d.searchTerm
	if f.Equal(d.state.Filters) {
		d.mu.Unlock()
		return nil
	}
	d.set(d.state.WithFilters(f))
	d.mu.Unlock()
	return d.Refresh(ctx)
}

// HandleEvent merges one change notification into the list.
func (d *Dashboard) HandleEvent(evt models.ChangeEvent) {
	if evt.Table != "" && evt.Table != config.CertificatesTB {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if evt.Type == models.EventDelete && evt.Old != nil {
		if _, ok := d.settled[evt.Old.ID]; ok {
			delete(d.settled, evt.Old.ID)
			return
		}
	}
	d.set(d.state.WithEvent(evt, d.opts.UserID, d.ignored))
}

func (d *Dashboard) Select(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(d.state.Select(id))
}

func (d *Dashboard) Deselect(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(d.state.Deselect(id))
}

func (d *Dashboard) Toggle(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(d.state.Toggle(id))
}

func (d *Dashboard) SelectPage() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(d.state.SelectPage())
}

func (d *Dashboard) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(d.state.ClearSelection())
}

// Delete hides id right away and commits the backend delete once the undo
// window passes. Deleting an id that is already pending does nothing.
func (d *Dashboard) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.pending.Exists(id) {
		return nil
	}
	next, cert, index := d.state.Remove(id)
	if cert == nil {
		return ErrNotListed
	}
	p := &pendingDelete{cert: cert, index: index, page: d.state.Page, filters: d.state.Filters}
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.opts.UndoWindow, func() {
		defer d.wg.Done()
		d.commit(id, p)
	})
	d.pending.Set(id, p)
	d.set(next)
	d.log.WithField("certificate", id).Debug("delete pending")
	return nil
}

// Undo cancels a pending delete and puts the exact prior record back where
// it was. When the page or filters changed since, the current view is
// refetched instead. It reports whether anything was undone.
func (d *Dashboard) Undo(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending.Get(id)
	if !ok {
		return false
	}
	// a timer that already fired finds the entry gone and backs off
	if p.timer.Stop() {
		d.wg.Done()
	}
	d.pending.Delete(id)
	d.putBack(p, p.index)
	return true
}

// putBack shows p's record again at index when its view is still the one
// loaded, and refetches otherwise. Callers hold d.mu.
func (d *Dashboard) putBack(p *pendingDelete, index int) {
	if p.page != d.state.Page || !p.filters.Equal(d.state.Filters) {
		d.refreshAsync()
		return
	}
	if p.counted {
		d.set(d.state.Reinsert(p.cert, index))
		return
	}
	d.set(d.state.Restore(p.cert, index))
}

// Pending lists ids waiting for their undo window, oldest first.
func (d *Dashboard) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Keys()
}

func (d *Dashboard) commit(id string, p *pendingDelete) {
	d.mu.Lock()
	cur, ok := d.pending.Get(id)
	if !ok || cur != p || d.closed {
		d.mu.Unlock()
		return
	}
	d.pending.Delete(id)
	d.settled[id] = struct{}{}
	d.mu.Unlock()

	if err := d.commitDelete(d.ctx, p); err != nil {
		d.report(err)
	}
}

// commitDelete deletes the row, then tries the blob. A failed row delete
// puts the record back.
func (d *Dashboard) commitDelete(ctx context.Context, p *pendingDelete) error {
	cert := p.cert
	if err := d.backend.DeleteRows(ctx, []string{cert.ID}); err != nil {
		d.mu.Lock()
		delete(d.settled, cert.ID)
		if !d.closed {
			d.putBack(p, d.indexHint(cert))
		}
		d.mu.Unlock()
		return fmt.Errorf("delete %q: %w", cert.DisplayName(), err)
	}
	d.log.WithField("certificate", cert.ID).Info("certificate deleted")
	if cert.StoragePath != "" {
		if err := d.backend.RemoveBlobs(ctx, []string{cert.StoragePath}); err != nil {
			d.log.WithError(err).WithField("path", cert.StoragePath).Warn("remove blob after delete")
		}
	}
	d.mu.Lock()
	delete(d.urls, cert.StoragePath)
	d.mu.Unlock()
	return nil
}

// indexHint is where a record rejected by the backend goes back. Callers
// hold d.mu.
func (d *Dashboard) indexHint(cert *models.Certificate) int {
	for i, c := range d.state.Items {
		if c.CreatedAt.Before(cert.CreatedAt) {
			return i
		}
	}
	return len(d.state.Items)
}

// Flush commits every pending delete now, oldest first. Failures are
// joined.
func (d *Dashboard) Flush(ctx context.Context) error {
	d.mu.Lock()
	var due []*pendingDelete
	_ = d.pending.Range(func(id string, p *pendingDelete) error {
		if p.timer.Stop() {
			d.wg.Done()
			due = append(due, p)
			d.settled[id] = struct{}{}
		}
		return nil
	})
	for _, p := range due {
		d.pending.Delete(p.cert.ID)
	}
	d.mu.Unlock()

	var errs []error
	for _, p := range due {
		if err := d.commitDelete(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Edit validates locally, then saves and patches the listed copy.
func (d *Dashboard) Edit(ctx context.Context, id string, edit models.CertificateEdit) (*models.Certificate, error) {
	edit = edit.Normalize()
	if err := edit.Validate(); err != nil {
		return nil, err
	}
	updated, err := d.backend.Update(ctx, id, edit)
	if err != nil {
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	d.mu.Lock()
	d.set(d.state.Patch(updated))
	d.mu.Unlock()
	return updated, nil
}

// Upload validates locally, sends the file, and puts the new record at the
// head of the list. The record is then polled until the backend lists it.
func (d *Dashboard) Upload(ctx context.Context, in certificates.UploadInput) (*certificates.UploadResult, error) {
	in.MimeType = certificates.DetectMime(in.FileName, in.MimeType)
	in.Edit = in.Edit.Normalize()
	if err := certificates.ValidateUpload(in, d.opts.MaxFileSize); err != nil {
		return nil, err
	}
	if in.Edit.Title != "" {
		if err := in.Edit.Validate(); err != nil {
			return nil, err
		}
	}
	res, err := d.backend.Upload(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", in.FileName, err)
	}
	cert := res.Certificate

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return res, nil
	}
	if res.URL != "" {
		d.urls[cert.StoragePath] = cachedURL{url: res.URL, expires: time.Now().Add(d.opts.URLTTL)}
	}
	next := d.state.Upsert(cert)
	next.LastUploaded = cert
	d.set(next)
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.verifyCreated(cert.ID)
	}()
	return res, nil
}

// verifyCreated polls for a freshly uploaded record and merges it once the
// backend returns it.
func (d *Dashboard) verifyCreated(id string) {
	b := &backoff.Backoff{Min: d.opts.VerifyBackoff, Max: 30 * d.opts.VerifyBackoff, Factor: 2}
	for attempt := 0; attempt < d.opts.VerifyAttempts; attempt++ {
		found, err := d.backend.Get(d.ctx, []string{id})
		if err == nil && len(found) > 0 {
			d.mu.Lock()
			if !d.closed && !d.ignored(id) {
				d.set(d.state.Upsert(found[0]))
			}
			d.mu.Unlock()
			return
		}
		if err != nil {
			d.log.WithError(err).WithField("attempt", attempt+1).Debug("verify upload")
		}
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(b.Duration()):
		}
	}
	d.log.WithField("certificate", id).Warn("uploaded certificate not visible yet")
}

// URL returns a retrievable link for cert, cached until it expires.
func (d *Dashboard) URL(ctx context.Context, cert *models.Certificate) (string, error) {
	d.mu.Lock()
	cached, ok := d.urls[cert.StoragePath]
	d.mu.Unlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.url, nil
	}
	url, err := d.backend.ResolveURL(ctx, cert.StoragePath)
	if err != nil {
		return "", fmt.Errorf("resolve url for %q: %w", cert.DisplayName(), err)
	}
	d.mu.Lock()
	d.urls[cert.StoragePath] = cachedURL{url: url, expires: time.Now().Add(d.opts.URLTTL)}
	d.mu.Unlock()
	return url, nil
}

// Reset forgets everything: pending deletes are dropped without touching
// the backend. Used on sign-out.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropTimers()
	d.urls = make(map[string]cachedURL)
	d.settled = make(map[string]struct{})
	d.searchTerm = ""
	d.gen++
	d.set(NewState())
}

// ResetOnSignOut clears the dashboard whenever h loses its token. The
// returned func stops following h.
func (d *Dashboard) ResetOnSignOut(h *client.SessionHolder) func() {
	return h.OnChange(func(token string) {
		if token == "" {
			d.Reset()
		}
	})
}

// dropTimers cancels the debounce and every pending delete. Callers hold d.mu.
func (d *Dashboard) dropTimers() {
	d.stopSearchTimer()
	d.searchGen++
	_ = d.pending.Range(func(_ string, p *pendingDelete) error {
		if p.timer.Stop() {
			d.wg.Done()
		}
		return nil
	})
	d.pending.Clear()
}

// Close stops timers without committing pending deletes, leaves the change
// feed and waits for background work.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.dropTimers()
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()

	d.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	d.wg.Wait()
}
