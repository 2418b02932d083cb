package certificates

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/SumantSagar73/certify/pkg/extcron"
	"github.com/SumantSagar73/certify/pkg/helper"
	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper removes blobs no row references. Row and blob deletes are
// independent, so a failed blob delete leaves an orphan behind.
type Sweeper struct {
	store  storage.Store
	bucket *blob.Bucket
	grace  time.Duration
	log    *logrus.Entry
	now    func() time.Time
	cron   *cron.Cron
}

func NewSweeper(store storage.Store, bucket *blob.Bucket, grace time.Duration, log *logrus.Entry) *Sweeper {
	return &Sweeper{
		store:  store,
		bucket: bucket,
		grace:  grace,
		log:    log,
		now:    helper.GetTimeNow,
	}
}

// Sweep removes unreferenced objects older than the grace period and
// returns the paths it actually removed.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	stored, err := s.store.ReferencedPaths(ctx)
	if err != nil {
		return nil, err
	}
	referenced := s.expand(stored)
	cutoff := s.now().Add(-s.grace)

	var orphans []string
	err = s.bucket.Walk(func(p string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := referenced[p]; ok {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		orphans = append(orphans, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, p := range orphans {
		if err := s.bucket.Remove(ctx, p); err != nil {
			s.log.WithError(err).WithField("path", p).Warn("sweeper: orphan not removed")
			continue
		}
		removed = append(removed, p)
	}
	if len(removed) > 0 {
		s.log.WithField("count", len(removed)).Info("sweeper: removed orphan blobs")
	}
	return removed, nil
}

// expand maps stored references, legacy formats included, to every object
// path they may denote. Rows not yet migrated must keep their blobs.
func (s *Sweeper) expand(stored map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(stored))
	for raw := range stored {
		for _, c := range blob.PathCandidates(raw, s.bucket.Name()) {
			if p, err := blob.Clean(c); err == nil {
				out[p] = struct{}{}
			}
		}
	}
	return out
}

// Start schedules Sweep. A disabled schedule is not an error.
func (s *Sweeper) Start(spec string) error {
	schedule, err := extcron.NewParser().Parse(spec)
	if errors.Is(err, extcron.ErrDisabled) {
		s.log.Info("sweeper: disabled")
		return nil
	}
	if err != nil {
		return err
	}
	s.cron = cron.New(cron.WithParser(extcron.NewParser()))
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("sweeper: run failed")
		}
	}))
	s.cron.Start()
	s.log.WithField("schedule", spec).Info("sweeper: started")
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
