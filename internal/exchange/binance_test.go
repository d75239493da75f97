package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidegate/cryptoharvest/internal/config"
)

// fakeExchange serves canned public market data responses, routed on the
// endpoint name so the exact API path prefix does not matter.
func fakeExchange(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "ping"):
			w.Write([]byte(`{}`))
		case strings.Contains(r.URL.Path, "klines"):
			w.Write([]byte(`[[1710060000000,"67000.0","67100.0","66900.0","67050.0","123.4",1710060059999,"8270000.0",1500,"60.0","4020000.0","0"]]`))
		case strings.Contains(r.URL.Path, "depth"):
			w.Write([]byte(`{"lastUpdateId":100,"E":1710060000000,"T":1710059999999,"bids":[["67000.10","1.5"]],"asks":[["67000.20","0.8"]]}`))
		case strings.Contains(r.URL.Path, "openInterest"):
			w.Write([]byte(`{"openInterest":"10659.509","symbol":"BTCUSDT","time":1710060000000}`))
		case strings.Contains(strings.ToLower(r.URL.Path), "forceorders"):
			w.Write([]byte(`[{"orderId":1,"symbol":"BTCUSDT","status":"FILLED","price":"67000.0","avgPrice":"67001.0","origQty":"0.01","executedQty":"0.01","timeInForce":"IOC","type":"LIMIT","side":"SELL","time":1710060000000}]`))
		default:
			t.Errorf("unexpected request path %v", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestBinance(url string) *Binance {
	return NewBinance(&config.Exchange{RESTURL: url})
}

func TestPing(t *testing.T) {
	srv := fakeExchange(t)
	defer srv.Close()

	assert.NoError(t, newTestBinance(srv.URL).Ping(context.Background()))
}

func TestFetchCapturesRawPayloads(t *testing.T) {
	srv := fakeExchange(t)
	defer srv.Close()
	b := newTestBinance(srv.URL)

	tests := []struct {
		channel config.Channel
		marker  string
	}{
		{config.Channel{Name: config.ChannelCandle, CandleInterval: "1m"}, "67050"},
		{config.Channel{Name: config.ChannelOrderBook, Depth: 5}, "67000.10"},
		{config.Channel{Name: config.ChannelOpenInterest}, "10659.509"},
		{config.Channel{Name: config.ChannelLiquidation, LiquidationLookbackMin: 5}, "SELL"},
	}
	for _, tt := range tests {
		t.Run(tt.channel.Name, func(t *testing.T) {
			payload, err := b.Fetch(context.Background(), "BTCUSDT", &tt.channel, time.Now())
			require.NoError(t, err)
			assert.True(t, jsoniter.Valid(payload), "payload must stay valid JSON")
			assert.Contains(t, string(payload), tt.marker)
		})
	}
}

func TestFetchLiquidationWindowAnchoredToTickTime(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// The lookback window must derive from the tick time the sample is
	// stamped with, not from the wall clock at request time.
	at := time.Date(2024, 3, 10, 12, 0, 5, 0, time.UTC)
	ch := config.Channel{Name: config.ChannelLiquidation, LiquidationLookbackMin: 5}
	_, err := newTestBinance(srv.URL).Fetch(context.Background(), "BTCUSDT", &ch, at)
	require.NoError(t, err)

	assert.Equal(t, strconv.FormatInt(at.UnixMilli(), 10), query.Get("endTime"))
	assert.Equal(t, strconv.FormatInt(at.Add(-5*time.Minute).UnixMilli(), 10), query.Get("startTime"))
}

func TestFetchUnknownChannel(t *testing.T) {
	srv := fakeExchange(t)
	defer srv.Close()

	_, err := newTestBinance(srv.URL).Fetch(context.Background(), "BTCUSDT", &config.Channel{Name: "trades"}, time.Now())
	assert.Error(t, err)
}

func TestFetchExchangeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	}))
	defer srv.Close()

	_, err := newTestBinance(srv.URL).Fetch(context.Background(), "BTCUSDT", &config.Channel{Name: config.ChannelOpenInterest}, time.Now())
	assert.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t,
		"wss://fstream.binance.com/ws/btcusdt@forceOrder",
		StreamURL(config.BinanceFuturesStreamURL, "BTCUSDT"))
}
