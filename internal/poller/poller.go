// Package poller periodically refreshes a table's orders and loyalty discount.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tabble/internal/billing"
	"tabble/internal/models"
	"tabble/internal/monitoring"

	"go.uber.org/zap"
)

// DefaultInterval is the poll period when none is configured
const DefaultInterval = 10 * time.Second

// Source is what the poller reads from the restaurant API
type Source interface {
	GetPersonOrders(ctx context.Context, personID int) ([]models.Order, error)
	GetPerson(ctx context.Context, personID int) (*models.Person, error)
	billing.LoyaltyLookup
}

// Config selects whose orders are polled
type Config struct {
	PersonID    int
	TableNumber int
	Interval    time.Duration
}

// Poller runs one poll per interval and hands each result to deliver.
// A tick that comes due while the previous one is still running is skipped.
// Deliveries never overlap.
type Poller struct {
	src       Source
	cfg       Config
	deliver   func(Snapshot)
	log       *zap.Logger
	collector *monitoring.Collector

	// inFlight is held for the duration of a poll
	inFlight sync.Mutex
	wg       sync.WaitGroup
}

// New creates a new Poller
func New(src Source, cfg Config, deliver func(Snapshot), log *zap.Logger, collector *monitoring.Collector) (*Poller, error) {
	if cfg.PersonID <= 0 {
		return nil, models.NewValidationError("person_id", "polling needs a known person, got %d", cfg.PersonID)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		src:       src,
		cfg:       cfg,
		deliver:   deliver,
		log:       log.With(zap.Int("person_id", cfg.PersonID), zap.Int("table_number", cfg.TableNumber)),
		collector: collector,
	}, nil
}

// Run polls immediately and then on every interval until ctx is done.
// It returns once no poll is left running.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trigger(ctx)
		}
	}
}

// Refresh waits for any poll in flight, then polls and delivers the result
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	p.inFlight.Lock()
	defer p.inFlight.Unlock()
	return p.tick(ctx)
}

func (p *Poller) trigger(ctx context.Context) {
	if !p.inFlight.TryLock() {
		p.collector.PollTick("skipped")
		p.log.Debug("poll skipped, previous still running")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Unlock()
		if _, err := p.tick(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("poll failed", zap.Error(err))
		}
	}()
}

func (p *Poller) fetch(ctx context.Context) (Snapshot, error) {
	orders, err := p.src.GetPersonOrders(ctx, p.cfg.PersonID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch orders: %w", err)
	}

	person, err := p.src.GetPerson(ctx, p.cfg.PersonID)
	if err != nil {
		p.log.Debug("person lookup failed", zap.Error(err))
		person = nil
	}

	snapshot := Derive(orders, p.cfg.TableNumber)
	snapshot.Loyalty = billing.ResolveLoyalty(ctx, p.src, person, p.log)
	snapshot.FetchedAt = time.Now()
	return snapshot, nil
}

func (p *Poller) tick(ctx context.Context) (Snapshot, error) {
	snapshot, err := p.fetch(ctx)
	if err != nil {
		p.collector.PollTick("error")
		return Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	p.collector.PollTick("ok")
	p.deliver(snapshot)
	return snapshot, nil
}
