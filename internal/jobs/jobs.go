// Package jobs runs the periodic maintenance tasks: the low-stock scan and
// the search index rebuild.
package jobs

import (
	"context"
	"time"

	"byteshop/internal/metrics"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const runTimeout = 5 * time.Minute

// Catalog is the part of the product service the jobs need.
type Catalog interface {
	LowStock(ctx context.Context) ([]models.Product, error)
	Reindex(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	catalog  Catalog
	notifier services.Notifier
	log      logrus.FieldLogger
}

func NewScheduler(catalog Catalog, notifier services.Notifier, log logrus.FieldLogger) *Scheduler {
	if notifier == nil {
		notifier = services.Nop{}
	}
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		catalog:  catalog,
		notifier: notifier,
		log:      log,
	}
}

// Register adds both jobs. An empty schedule disables the job.
func (s *Scheduler) Register(lowStockSpec, reindexSpec string) error {
	if lowStockSpec != "" {
		if _, err := s.cron.AddFunc(lowStockSpec, s.run("low_stock", s.ScanLowStock)); err != nil {
			return err
		}
	}
	if reindexSpec != "" {
		if _, err := s.cron.AddFunc(reindexSpec, s.run("reindex", s.Reindex)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) run(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		metrics.RecordJobRun(name, err == nil)
		entry := s.log.WithFields(logrus.Fields{"job": name, "duration": time.Since(start).String()})
		if err != nil {
			entry.WithError(err).Error("job failed")
			return
		}
		entry.Debug("job finished")
	}
}

// ScanLowStock alerts the admins when any active product is at or below
// the threshold.
func (s *Scheduler) ScanLowStock(ctx context.Context) error {
	products, err := s.catalog.LowStock(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}
	s.log.WithField("count", len(products)).Warn("products low on stock")
	return s.notifier.LowStockAlert(ctx, products)
}

func (s *Scheduler) Reindex(ctx context.Context) error {
	n, err := s.catalog.Reindex(ctx)
	if err != nil {
		return err
	}
	s.log.WithField("indexed", n).Info("search index rebuilt")
	return nil
}

type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}
