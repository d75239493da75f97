package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
	"markets": [
		{
			"id": "BTCUSDT",
			"channels": [
				{"name": "candle"},
				{"name": "orderbook"},
				{"name": "open_interest"},
				{"name": "liquidation"}
			]
		}
	],
	"storage": {"file": {"dir": "./data"}}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, BinanceFuturesRESTBaseURL, cfg.Exchange.RESTURL)
	assert.Equal(t, BinanceFuturesStreamURL, cfg.Exchange.StreamURL)
	assert.Equal(t, 5, cfg.Poll.IntervalSec)
	assert.Equal(t, 5, cfg.Poll.RequestTimeoutSec)
	assert.Equal(t, "UTC", cfg.Poll.Timezone)
	assert.Equal(t, 5, cfg.Connection.WS.ReconnectGapSec)

	channels := cfg.Markets[0].Channels
	assert.Equal(t, "rest", channels[0].Connector)
	assert.Equal(t, "1m", channels[0].CandleInterval)
	assert.Equal(t, 20, channels[1].Depth)
	assert.Equal(t, 5, channels[3].LiquidationLookbackMin)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadBadJSON(t *testing.T) {
	_, err := Load(writeConfig(t, `{"markets": [`))
	assert.Error(t, err)
}

func TestValidateNoMarkets(t *testing.T) {
	_, err := Load(writeConfig(t, `{"markets": [], "storage": {"file": {"dir": "./d"}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one market")
}

func TestValidateUnknownChannel(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"markets": [{"id": "BTCUSDT", "channels": [{"name": "trades"}]}],
		"storage": {"file": {"dir": "./d"}}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown channel")
}

func TestValidateWebsocketOnlyForLiquidation(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"markets": [{"id": "BTCUSDT", "channels": [{"name": "candle", "connector": "websocket"}]}],
		"storage": {"file": {"dir": "./d"}}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supports only the rest connector")

	_, err = Load(writeConfig(t, `{
		"markets": [{"id": "BTCUSDT", "channels": [{"name": "liquidation", "connector": "websocket"}]}],
		"storage": {"file": {"dir": "./d"}}
	}`))
	assert.NoError(t, err)
}

func TestValidateNoStorage(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"markets": [{"id": "BTCUSDT", "channels": [{"name": "candle"}]}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
}

func TestValidateBadTimezone(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"markets": [{"id": "BTCUSDT", "channels": [{"name": "candle"}]}],
		"poll": {"timezone": "Mars/Olympus"},
		"storage": {"file": {"dir": "./d"}}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}

func TestValidateMissingCredentialsFile(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"markets": [{"id": "BTCUSDT", "channels": [{"name": "candle"}]}],
		"storage": {"gcs": {"bucket": "trading-data", "credentials_file": "/nonexistent/secret_key.json"}}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials file")
}

func TestValidateCheckpointInterval(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"markets": [{"id": "BTCUSDT", "channels": [{"name": "candle"}]}],
		"storage": {"file": {"dir": "./d"}, "checkpoint": {"dir": "./ck"}}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_ticks")
}

func TestMktCommitName(t *testing.T) {
	assert.Equal(t, "BTCUSDT", MktCommitName(&Market{ID: "BTCUSDT"}))
	assert.Equal(t, "btc", MktCommitName(&Market{ID: "BTCUSDT", CommitName: "btc"}))
}
