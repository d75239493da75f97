package collector

import (
	"context"
	"os"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"github.com/tidegate/cryptoharvest/internal/buffer"
	"github.com/tidegate/cryptoharvest/internal/config"
	"github.com/tidegate/cryptoharvest/internal/storage"
)

// Sink serializes a completed day and commits one object per series to
// every configured store.
type Sink struct {
	stores     []storage.ObjectStore
	prefix     string
	retry      config.Retry
	checkpoint *storage.FileStore
}

// NewSink creates a sink over the given stores. checkpoint may be nil when
// partial day persistence is disabled.
func NewSink(stores []storage.ObjectStore, prefix string, retryCfg config.Retry, checkpoint *storage.FileStore) *Sink {
	return &Sink{
		stores:     stores,
		prefix:     prefix,
		retry:      retryCfg,
		checkpoint: checkpoint,
	}
}

// Flush commits the drained day, one object per non-empty series per store.
// Upload failures are retried with backoff, then logged and abandoned: the
// loop must keep collecting the new day regardless, and the day's checkpoint
// stays behind for manual recovery. Object keys are deterministic, so a
// repeated flush for the same day overwrites rather than duplicates.
func (s *Sink) Flush(ctx context.Context, day time.Time, completed map[buffer.Key][]storage.Sample) {
	clean := true
	for key, samples := range completed {
		if len(samples) == 0 {
			continue
		}
		data, err := storage.EncodeSeries(samples)
		if err != nil {
			clean = false
			logErrStack(err)
			continue
		}
		objKey := storage.ObjectKey(s.prefix, day, key.Market, key.Channel)
		for _, store := range s.stores {
			if err = s.commit(ctx, store, objKey, data); err != nil {
				clean = false
				log.Error().Str("store", store.Name()).Str("object", objKey).Err(err).Msg("day flush failed")
				continue
			}
			log.Info().Str("store", store.Name()).Str("object", objKey).Int("samples", len(samples)).Msg("day flushed")
		}
	}
	if clean {
		s.dropCheckpoints(day, completed)
	}
}

func (s *Sink) commit(ctx context.Context, store storage.ObjectStore, key string, data []byte) error {
	// retry.Attempts counts the first try as well.
	attempts := uint(s.retry.Number) + 1
	return retry.Do(
		func() error {
			return store.Commit(ctx, key, data)
		},
		retry.Attempts(attempts),
		retry.Delay(time.Duration(s.retry.GapSec)*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

// Checkpoint writes the current partial day to the local checkpoint store so
// a mid day restart does not lose the samples collected so far.
func (s *Sink) Checkpoint(day time.Time, completed map[buffer.Key][]storage.Sample) {
	if s.checkpoint == nil {
		return
	}
	for key, samples := range completed {
		if len(samples) == 0 {
			continue
		}
		data, err := storage.EncodeSeries(samples)
		if err != nil {
			logErrStack(err)
			continue
		}
		if err = s.checkpoint.Commit(context.Background(), storage.ObjectKey("", day, key.Market, key.Channel), data); err != nil {
			logErrStack(err)
		}
	}
}

// Restore seeds the buffer from a same day checkpoint left by an earlier run.
func (s *Sink) Restore(buf *buffer.DailyBuffer, keys []buffer.Key) {
	if s.checkpoint == nil {
		return
	}
	day := buf.Day()
	for _, key := range keys {
		data, err := s.checkpoint.Get(storage.ObjectKey("", day, key.Market, key.Channel))
		if err != nil {
			if !os.IsNotExist(err) {
				logErrStack(err)
			}
			continue
		}
		samples, err := storage.DecodeSeries(data)
		if err != nil {
			logErrStack(err)
			continue
		}
		buf.Restore(key, samples)
		log.Info().Str("market", key.Market).Str("channel", key.Channel).Int("samples", len(samples)).Msg("checkpoint restored")
	}
}

func (s *Sink) dropCheckpoints(day time.Time, completed map[buffer.Key][]storage.Sample) {
	if s.checkpoint == nil {
		return
	}
	for key := range completed {
		if err := s.checkpoint.Delete(storage.ObjectKey("", day, key.Market, key.Channel)); err != nil {
			logErrStack(err)
		}
	}
}
