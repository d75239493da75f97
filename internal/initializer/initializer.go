package initializer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/tidegate/cryptoharvest/internal/buffer"
	"github.com/tidegate/cryptoharvest/internal/collector"
	"github.com/tidegate/cryptoharvest/internal/config"
	"github.com/tidegate/cryptoharvest/internal/exchange"
	"github.com/tidegate/cryptoharvest/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Start will initialize various required systems and then execute the app.
func Start(mainCtx context.Context, cfg *config.Config) error {

	// Setting up logger.
	// If the path given in the config for logging ends with .log then create a log file with the same name and
	// write log messages to it. If the path is empty, log to stderr. Otherwise, create a new log file with a
	// timestamp attached to it's name in the given path.
	var (
		logDest io.Writer
		err     error
	)
	switch {
	case cfg.Log.FilePath == "":
		logDest = os.Stderr
	case strings.HasSuffix(cfg.Log.FilePath, ".log"):
		logFile, err := os.OpenFile(cfg.Log.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return fmt.Errorf("not able to open or create log file: %v", cfg.Log.FilePath)
		}
		defer logFile.Close()
		logDest = logFile
	default:
		name := cfg.Log.FilePath + "_" + strconv.Itoa(int(time.Now().Unix())) + ".log"
		logFile, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("not able to create log file: %v", name)
		}
		defer logFile.Close()
		logDest = logFile
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	switch cfg.Log.Level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Logger = zerolog.New(logDest).With().Timestamp().Logger()
	log.Info().Msg("logger setup is done")

	// Establish connections to the configured storage systems. Any failure
	// here is a configuration problem, refuse to start rather than run
	// degraded and silently lose a day of data later.
	var stores []storage.ObjectStore
	if cfg.Storage.GCS.Bucket != "" {
		gcs, err := storage.InitGCS(mainCtx, &cfg.Storage.GCS)
		if err != nil {
			err = errors.Wrap(err, "gcs connection")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		stores = append(stores, gcs)
		log.Info().Str("bucket", cfg.Storage.GCS.Bucket).Msg("gcs bucket connected")
	}
	if cfg.Storage.File.Dir != "" {
		fileStore, err := storage.InitFileStore(cfg.Storage.File.Dir)
		if err != nil {
			err = errors.Wrap(err, "file storage")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		stores = append(stores, fileStore)
		log.Info().Str("dir", cfg.Storage.File.Dir).Msg("file storage ready")
	}
	var checkpoint *storage.FileStore
	if cfg.Storage.Checkpoint.Dir != "" {
		checkpoint, err = storage.InitFileStore(cfg.Storage.Checkpoint.Dir)
		if err != nil {
			err = errors.Wrap(err, "checkpoint storage")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		log.Info().Str("dir", cfg.Storage.Checkpoint.Dir).Msg("checkpoint storage ready")
	}

	// Verify exchange connectivity once up front.
	binance := exchange.NewBinance(&cfg.Exchange)
	var pingCtx context.Context
	if cfg.Connection.REST.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(mainCtx, time.Duration(cfg.Connection.REST.ReqTimeoutSec)*time.Second)
		pingCtx = timeoutCtx
		defer cancel()
	} else {
		pingCtx = mainCtx
	}
	if err = binance.Ping(pingCtx); err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}
	log.Info().Msg("exchange connection setup is done")

	buf := buffer.New(time.Now(), cfg.Location())
	sink := collector.NewSink(stores, cfg.Storage.GCS.Prefix, cfg.Storage.GCS.Retry, checkpoint)
	coll := collector.New(cfg, binance, buf, sink)

	// A same day checkpoint from an earlier run carries the partial day over
	// the restart.
	sink.Restore(buf, coll.Keys())

	appErrGroup, appCtx := errgroup.WithContext(mainCtx)
	appErrGroup.Go(func() error {
		return coll.Start(appCtx)
	})
	err = appErrGroup.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Msg("exiting the app")
		return err
	}
	log.Info().Msg("collector stopped")
	return nil
}
