package collector

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidegate/cryptoharvest/internal/buffer"
	"github.com/tidegate/cryptoharvest/internal/connector"
	"github.com/tidegate/cryptoharvest/internal/exchange"
	"github.com/tidegate/cryptoharvest/internal/storage"
)

// watch appends raw frames from a market's liquidation stream to the buffer.
// Stream trouble never stops the app: the watcher reconnects with the
// configured gap until the context is canceled. The buffer routes frames
// arriving after midnight into the pending day, so the poll loop's rollover
// flush stays correct without any coordination here.
func (c *Collector) watch(ctx context.Context, s series) error {
	url := exchange.StreamURL(c.cfg.Exchange.StreamURL, s.mktID)
	key := s.key()
	gap := time.Duration(c.cfg.Connection.WS.ReconnectGapSec) * time.Second

	for {
		err := c.readStream(ctx, url, key)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logErrStack(err)
		}
		log.Info().Str("market", s.mktID).Msg("liquidation stream reconnecting")
		select {
		case <-time.After(gap):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Collector) readStream(ctx context.Context, url string, key buffer.Key) error {
	ws, err := connector.NewWebsocket(ctx, &c.cfg.Connection.WS, url)
	if err != nil {
		return err
	}

	// Closing the connection unblocks the pending read when the app stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = ws.Close()
	}()

	log.Info().Str("market", key.Market).Str("channel", key.Channel).Msg("liquidation stream connected")
	for {
		frame, err := ws.Read()
		if err != nil {
			return err
		}
		if len(frame) == 0 {
			continue
		}
		payload := make(jsoniter.RawMessage, len(frame))
		copy(payload, frame)
		c.buf.Append(key, storage.Sample{
			Timestamp: time.Now(),
			Payload:   payload,
		})
	}
}
