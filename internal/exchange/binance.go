// Package exchange wraps the third-party binance connectivity library.
// Responses are marshaled back to raw JSON and never interpreted here:
// the collector stores what the exchange returned, schema changes included.
package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidegate/cryptoharvest/internal/config"
)

// Binance fetches public USDⓈ-M futures market data through go-binance.
type Binance struct {
	client *futures.Client
}

// NewBinance creates the futures client with configured values.
func NewBinance(cfg *config.Exchange) *Binance {
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.RESTURL != "" {
		client.BaseURL = cfg.RESTURL
	}
	return &Binance{client: client}
}

// Ping checks exchange connectivity. Called once at startup so a bad REST
// url or unreachable exchange refuses to start instead of logging every tick.
func (b *Binance) Ping(ctx context.Context) error {
	if err := b.client.NewPingService().Do(ctx); err != nil {
		return errors.Wrap(err, "exchange ping")
	}
	return nil
}

// Fetch issues one public market data request for the given market and
// channel and returns the raw response payload. at is the tick time the
// sample will be stamped with; the liquidation lookback window is anchored
// to it so payload and sample timestamp stay consistent.
func (b *Binance) Fetch(ctx context.Context, mktID string, ch *config.Channel, at time.Time) (jsoniter.RawMessage, error) {
	switch ch.Name {
	case config.ChannelCandle:
		klines, err := b.client.NewKlinesService().
			Symbol(mktID).
			Interval(ch.CandleInterval).
			Limit(1).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "klines fetch")
		}
		return marshalPayload(klines)

	case config.ChannelOrderBook:
		depth, err := b.client.NewDepthService().
			Symbol(mktID).
			Limit(ch.Depth).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "depth fetch")
		}
		return marshalPayload(depth)

	case config.ChannelOpenInterest:
		oi, err := b.client.NewGetOpenInterestService().
			Symbol(mktID).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "open interest fetch")
		}
		return marshalPayload(oi)

	case config.ChannelLiquidation:
		start := at.Add(-time.Duration(ch.LiquidationLookbackMin) * time.Minute)
		orders, err := b.client.NewListLiquidationOrdersService().
			Symbol(mktID).
			StartTime(start.UnixMilli()).
			EndTime(at.UnixMilli()).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "liquidation orders fetch")
		}
		return marshalPayload(orders)
	}
	return nil, errors.Errorf("unknown channel %v", ch.Name)
}

// StreamURL returns the public stream url for a market's liquidation feed.
func StreamURL(base string, mktID string) string {
	return base + "/" + strings.ToLower(mktID) + "@forceOrder"
}

func marshalPayload(v interface{}) (jsoniter.RawMessage, error) {
	raw, err := jsoniter.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "payload marshal")
	}
	return raw, nil
}
