package storage

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Sample represents one fetched record for one channel of one market at one
// poll tick. Payload is the raw exchange response, stored uninterpreted.
type Sample struct {
	Timestamp time.Time           `json:"timestamp"`
	Payload   jsoniter.RawMessage `json:"payload"`
}

// ObjectStore is a write-only daily object sink.
type ObjectStore interface {
	Name() string
	Commit(ctx context.Context, key string, data []byte) error
}

// ObjectTimestamp is the date part of an object key.
const ObjectTimestamp = "20060102"

// ObjectKey returns the deterministic storage key for one day of one series.
// Committing the same day and series twice produces the same key, so a
// repeated flush overwrites the earlier object instead of duplicating it.
func ObjectKey(prefix string, day time.Time, market string, channel string) string {
	key := day.Format(ObjectTimestamp) + "_" + market + "_" + channel + ".ndjson.gz"
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
