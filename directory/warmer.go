package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/logging"
	"github.com/madbus/madbus/model"
)

const (
	DefaultBatchSize = 100
	DefaultStagger   = 2 * time.Second
	DefaultMaxID     = 6000
)

type PageSource interface {
	CatalogPage(ctx context.Context, from int, to int) ([]emt.Node, error)
}

type NodeNormalizer interface {
	NormalizeNode(ctx context.Context, node emt.Node) (*model.Stop, error)
}

// Warmer fills a Directory by paging through the stop ID range
// [1, MaxID) in batches of BatchSize, batch i starting i*Stagger
// after the first.
type Warmer struct {
	BatchSize int
	Stagger   time.Duration
	MaxID     int
	Retry     RetryPolicy

	directory  *Directory
	source     PageSource
	normalizer NodeNormalizer
	log        *logrus.Entry
}

func NewWarmer(d *Directory, source PageSource, normalizer NodeNormalizer) *Warmer {
	return &Warmer{
		BatchSize: DefaultBatchSize,
		Stagger:   DefaultStagger,
		MaxID:     DefaultMaxID,
		Retry:     DefaultRetryPolicy,

		directory:  d,
		source:     source,
		normalizer: normalizer,
		log:        logging.GetLogger(logging.DirectoryModule),
	}
}

type batch struct {
	from int
	to   int
}

func (w *Warmer) batches() []batch {
	size := w.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := []batch{}
	for from := 1; from < w.MaxID; from += size {
		to := from + size
		if to > w.MaxID {
			to = w.MaxID
		}
		batches = append(batches, batch{from, to})
	}
	return batches
}

// Run blocks until every batch has been loaded or given up on, or
// ctx is done. The directory is marked complete only if all batches
// were loaded.
func (w *Warmer) Run(ctx context.Context) error {
	batches := w.batches()
	w.log.WithField("batches", len(batches)).Info("warming up stop directory")

	var wg sync.WaitGroup
	var mutex sync.Mutex
	errs := []error{}

	for i, b := range batches {
		wg.Add(1)
		go func(delay time.Duration, b batch) {
			defer wg.Done()

			if err := sleep(ctx, delay); err != nil {
				return
			}

			err := w.loadWithRetry(ctx, b)
			if err != nil {
				mutex.Lock()
				errs = append(errs, err)
				mutex.Unlock()
			}
		}(time.Duration(i)*w.Stagger, b)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	w.directory.markComplete()
	w.log.WithField("stops", w.directory.Len()).Info("stop directory complete")

	return nil
}

func (w *Warmer) loadWithRetry(ctx context.Context, b batch) error {
	log := w.log.WithField("batch", fmt.Sprintf("%d-%d", b.from, b.to))

	for attempts := 0; ; {
		err := w.load(ctx, b)
		if err == nil {
			return nil
		}
		attempts++

		if !w.Retry.Allow(attempts) {
			log.WithError(err).Error("giving up on batch")
			return fmt.Errorf("batch %d-%d: %w", b.from, b.to, err)
		}

		delay := w.Retry.Delay(attempts)
		log.WithError(err).WithField("retry_in", delay).Warn("batch failed")

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (w *Warmer) load(ctx context.Context, b batch) error {
	nodes, err := w.source.CatalogPage(ctx, b.from, b.to)
	if err != nil {
		return fmt.Errorf("fetching catalog page: %w", err)
	}

	for _, node := range nodes {
		stop, err := w.normalizer.NormalizeNode(ctx, node)
		if err != nil {
			w.log.WithError(err).WithField("stop_id", node.Node.String()).Warn("skipping stop")
			continue
		}
		w.directory.Upsert(stop)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
