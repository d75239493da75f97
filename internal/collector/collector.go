// Package collector runs the polling loop and the daily flush.
package collector

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidegate/cryptoharvest/internal/buffer"
	"github.com/tidegate/cryptoharvest/internal/config"
	"github.com/tidegate/cryptoharvest/internal/storage"
	"golang.org/x/sync/errgroup"
)

// finalFlushTimeout bounds the best effort flush on shutdown.
const finalFlushTimeout = 30 * time.Second

// Fetcher issues one public market data request for one channel of one
// market. at is the tick time the resulting sample will be stamped with.
type Fetcher interface {
	Fetch(ctx context.Context, mktID string, ch *config.Channel, at time.Time) (jsoniter.RawMessage, error)
}

// series is one tracked (market, channel) combination.
type series struct {
	mktID      string
	commitName string
	channel    config.Channel
}

func (s *series) key() buffer.Key {
	return buffer.Key{Market: s.commitName, Channel: s.channel.Name}
}

// Collector polls the exchange on a fixed interval, accumulates samples in
// the daily buffer and hands completed days to the sink.
type Collector struct {
	cfg     *config.Config
	fetcher Fetcher
	buf     *buffer.DailyBuffer
	sink    *Sink

	restSeries []series
	wsSeries   []series
	tickCount  int
}

// New creates a collector for the configured markets. Channels are split by
// connector: rest channels are polled every tick, websocket liquidation
// channels get a stream watcher of their own.
func New(cfg *config.Config, fetcher Fetcher, buf *buffer.DailyBuffer, sink *Sink) *Collector {
	c := &Collector{
		cfg:     cfg,
		fetcher: fetcher,
		buf:     buf,
		sink:    sink,
	}
	for i := range cfg.Markets {
		market := &cfg.Markets[i]
		for _, ch := range market.Channels {
			s := series{
				mktID:      market.ID,
				commitName: config.MktCommitName(market),
				channel:    ch,
			}
			if ch.Connector == "websocket" {
				c.wsSeries = append(c.wsSeries, s)
			} else {
				c.restSeries = append(c.restSeries, s)
			}
		}
	}
	return c
}

// Keys returns the buffer keys of every tracked series.
func (c *Collector) Keys() []buffer.Key {
	keys := make([]buffer.Key, 0, len(c.restSeries)+len(c.wsSeries))
	for i := range c.restSeries {
		keys = append(keys, c.restSeries[i].key())
	}
	for i := range c.wsSeries {
		keys = append(keys, c.wsSeries[i].key())
	}
	return keys
}

// Start runs the poll loop and the stream watchers until the context is
// canceled, then flushes the partial day best effort before returning.
func (c *Collector) Start(ctx context.Context) error {
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return c.poll(grpCtx)
	})
	for i := range c.wsSeries {
		s := c.wsSeries[i]
		grp.Go(func() error {
			return c.watch(grpCtx, s)
		})
	}
	err := grp.Wait()
	c.finalFlush()
	return err
}

func (c *Collector) poll(ctx context.Context) error {
	interval := time.Duration(c.cfg.Poll.IntervalSec) * time.Second

	// Original behavior: first tick lands on a wall clock multiple of the
	// interval, so daily files line up across restarts.
	if c.cfg.Poll.AlignTicks {
		wait := interval - time.Duration(time.Now().UnixNano())%interval
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	c.tick(ctx, time.Now())
	for {
		select {
		case t := <-tick.C:
			c.tick(ctx, t)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tick flushes the completed day on date rollover, then fans out one fetch
// per rest series and merges all awaited results into the buffer. A failed
// fetch skips only its own sample; the next tick is its retry.
func (c *Collector) tick(ctx context.Context, now time.Time) {
	if c.buf.Rolled(now) {
		day, completed := c.buf.Drain(now)
		c.sink.Flush(ctx, day, completed)
	}

	payloads := make([]jsoniter.RawMessage, len(c.restSeries))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i := range c.restSeries {
		i := i
		s := &c.restSeries[i]
		grp.Go(func() error {
			reqCtx, cancel := context.WithTimeout(grpCtx, time.Duration(c.cfg.Poll.RequestTimeoutSec)*time.Second)
			defer cancel()
			payload, err := c.fetcher.Fetch(reqCtx, s.mktID, &s.channel, now)
			if err != nil {
				if !errors.Is(err, ctx.Err()) {
					log.Error().Str("market", s.mktID).Str("channel", s.channel.Name).Err(err).Msg("fetch failed, sample skipped for this tick")
				}
				return nil
			}
			payloads[i] = payload
			return nil
		})
	}
	_ = grp.Wait()

	for i := range c.restSeries {
		if payloads[i] == nil {
			continue
		}
		c.buf.Append(c.restSeries[i].key(), storage.Sample{
			Timestamp: now,
			Payload:   payloads[i],
		})
	}

	c.tickCount++
	if n := c.cfg.Storage.Checkpoint.IntervalTicks; n > 0 && c.tickCount%n == 0 {
		c.sink.Checkpoint(c.buf.Day(), c.buf.Snapshot())
	}
}

// finalFlush drains whatever the buffer holds on shutdown. The app context
// is already gone at this point, so the flush gets its own deadline.
func (c *Collector) finalFlush() {
	now := time.Now()
	day, completed := c.buf.Drain(now)
	total := 0
	for _, samples := range completed {
		total += len(samples)
	}
	if total == 0 {
		return
	}
	log.Info().Int("samples", total).Msg("flushing partial day on shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	c.sink.Flush(ctx, day, completed)
}

// logErrStack logs error with stack trace.
func logErrStack(err error) {
	log.Error().Stack().Err(errors.WithStack(err)).Msg("")
}
