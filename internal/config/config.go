package config

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const (
	// BinanceFuturesRESTBaseURL is the binance USDⓈ-M futures base REST url.
	BinanceFuturesRESTBaseURL = "https://fapi.binance.com"
	// BinanceFuturesStreamURL is the binance USDⓈ-M futures websocket stream base url.
	BinanceFuturesStreamURL = "wss://fstream.binance.com/ws"
)

// Channel names for the tracked data types.
const (
	ChannelCandle       = "candle"
	ChannelOrderBook    = "orderbook"
	ChannelOpenInterest = "open_interest"
	ChannelLiquidation  = "liquidation"
)

// Config contains config values for the app.
// Struct values are loaded from user defined JSON config file.
type Config struct {
	Exchange   Exchange   `json:"exchange"`
	Markets    []Market   `json:"markets"`
	Poll       Poll       `json:"poll"`
	Storage    Storage    `json:"storage"`
	Connection Connection `json:"connection"`
	Log        Log        `json:"log"`
}

// Exchange contains config values for the exchange API access.
// Key and secret are optional, public market data endpoints work without them.
type Exchange struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	RESTURL   string `json:"rest_url"`
	StreamURL string `json:"stream_url"`
}

// Market contains config values for one tracked trading pair.
type Market struct {
	ID         string    `json:"id"`
	CommitName string    `json:"commit_name"`
	Channels   []Channel `json:"channels"`
}

// Channel contains config values for one tracked data type of a market.
type Channel struct {
	Name      string `json:"name"`
	Connector string `json:"connector"`

	// CandleInterval is the kline interval queried for the candle channel.
	CandleInterval string `json:"candle_interval"`

	// Depth is the number of order book levels queried for the orderbook channel.
	Depth int `json:"depth"`

	// LiquidationLookbackMin is the force order query window in minutes
	// for the rest connector of the liquidation channel.
	LiquidationLookbackMin int `json:"liquidation_lookback_min"`
}

// Poll contains config values for the polling loop.
type Poll struct {
	IntervalSec       int    `json:"interval_sec"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	Timezone          string `json:"timezone"`
	AlignTicks        bool   `json:"align_ticks"`
}

// Storage contains config values for the flush targets.
type Storage struct {
	GCS        GCS        `json:"gcs"`
	File       File       `json:"file"`
	Checkpoint Checkpoint `json:"checkpoint"`
}

// GCS contains config values for the cloud storage bucket.
type GCS struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	CredentialsFile string `json:"credentials_file"`
	ReqTimeoutSec   int    `json:"request_timeout_sec"`
	Retry           Retry  `json:"retry"`
}

// File contains config values for the local directory sink.
type File struct {
	Dir string `json:"dir"`
}

// Checkpoint contains config values for partial day buffer persistence.
type Checkpoint struct {
	Dir           string `json:"dir"`
	IntervalTicks int    `json:"interval_ticks"`
}

// Retry contains config values for retry process.
type Retry struct {
	Number int `json:"number"`
	GapSec int `json:"gap_sec"`
}

// Connection contains config values for different API connections.
type Connection struct {
	WS   WS   `json:"websocket"`
	REST REST `json:"rest"`
}

// WS contains config values for websocket connection.
type WS struct {
	ConnTimeoutSec  int `json:"conn_timeout_sec"`
	ReadTimeoutSec  int `json:"read_timeout_sec"`
	ReconnectGapSec int `json:"reconnect_gap_sec"`
}

// REST contains config values for REST API connection.
type REST struct {
	ReqTimeoutSec int `json:"request_timeout_sec"`
}

// Log contains config values for logging.
type Log struct {
	Level    string `json:"level"`
	FilePath string `json:"file_path"`
}

// Load reads and decodes the JSON config file at the given path and
// validates the decoded values.
func Load(path string) (*Config, error) {
	cfgFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "not able to open config file")
	}
	defer cfgFile.Close()

	var cfg Config
	if err = jsoniter.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "not able to parse JSON from config file")
	}
	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Exchange.RESTURL == "" {
		c.Exchange.RESTURL = BinanceFuturesRESTBaseURL
	}
	if c.Exchange.StreamURL == "" {
		c.Exchange.StreamURL = BinanceFuturesStreamURL
	}
	if c.Poll.IntervalSec == 0 {
		c.Poll.IntervalSec = 5
	}
	if c.Poll.RequestTimeoutSec == 0 {
		c.Poll.RequestTimeoutSec = c.Poll.IntervalSec
	}
	if c.Poll.Timezone == "" {
		c.Poll.Timezone = "UTC"
	}
	if c.Connection.WS.ReconnectGapSec == 0 {
		c.Connection.WS.ReconnectGapSec = 5
	}
	for mi := range c.Markets {
		for ci := range c.Markets[mi].Channels {
			ch := &c.Markets[mi].Channels[ci]
			if ch.Connector == "" {
				ch.Connector = "rest"
			}
			if ch.Name == ChannelCandle && ch.CandleInterval == "" {
				ch.CandleInterval = "1m"
			}
			if ch.Name == ChannelOrderBook && ch.Depth == 0 {
				ch.Depth = 20
			}
			if ch.Name == ChannelLiquidation && ch.LiquidationLookbackMin == 0 {
				ch.LiquidationLookbackMin = 5
			}
		}
	}
}

// Validate checks user defined config values which would make the app
// misbehave silently later. Returned errors are startup fatal.
func (c *Config) Validate() error {
	if len(c.Markets) == 0 {
		return errors.New("at least one market should be configured")
	}
	if c.Poll.IntervalSec < 1 {
		return errors.New("poll interval_sec should be greater than zero")
	}
	if _, err := time.LoadLocation(c.Poll.Timezone); err != nil {
		return errors.Wrapf(err, "not able to load poll timezone %v", c.Poll.Timezone)
	}
	for _, market := range c.Markets {
		if market.ID == "" {
			return errors.New("market id should not be empty")
		}
		if len(market.Channels) == 0 {
			return errors.Errorf("market %v should have at least one channel", market.ID)
		}
		for _, ch := range market.Channels {
			switch ch.Name {
			case ChannelCandle, ChannelOrderBook, ChannelOpenInterest, ChannelLiquidation:
			default:
				return errors.Errorf("market %v has unknown channel %v", market.ID, ch.Name)
			}
			switch ch.Connector {
			case "rest":
			case "websocket":
				if ch.Name != ChannelLiquidation {
					return errors.Errorf("market %v channel %v supports only the rest connector", market.ID, ch.Name)
				}
			default:
				return errors.Errorf("market %v channel %v has unknown connector %v", market.ID, ch.Name, ch.Connector)
			}
		}
	}
	if c.Storage.GCS.Bucket == "" && c.Storage.File.Dir == "" {
		return errors.New("either a gcs bucket or a file dir should be configured for storage")
	}
	if c.Storage.GCS.Bucket != "" && c.Storage.GCS.CredentialsFile != "" {
		if _, err := os.Stat(c.Storage.GCS.CredentialsFile); err != nil {
			return errors.Wrapf(err, "not able to read gcs credentials file %v", c.Storage.GCS.CredentialsFile)
		}
	}
	if c.Storage.Checkpoint.Dir != "" && c.Storage.Checkpoint.IntervalTicks < 1 {
		return errors.New("checkpoint interval_ticks should be greater than zero")
	}
	return nil
}

// Location returns the timezone used for day boundary detection.
// Validate guarantees the name parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Poll.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MktCommitName returns the name under which a market's data is stored.
func MktCommitName(market *Market) string {
	if market.CommitName != "" {
		return market.CommitName
	}
	return market.ID
}
