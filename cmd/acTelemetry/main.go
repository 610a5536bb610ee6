package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"justapengu.in/actelemetry/internal/config"
	"justapengu.in/actelemetry/internal/laplog"
	"justapengu.in/actelemetry/internal/monitoring"
	"justapengu.in/actelemetry/internal/telemetry"
	"justapengu.in/actelemetry/pkg/acudp"
)

var (
	configPath string
	verbose    bool
)

func main() {
	flag.StringVar(&configPath, "c", "", "config path (.yml or .ini)")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Assetto Corsa Telemetry Logger\n\nUsage: %s [flags] [host] [port]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load(configPath)

	if err != nil {
		logger.WithError(err).Fatalf("Could not read config at %s", configPath)
	}

	if err := applyArgs(cfg, flag.Args()); err != nil {
		logger.WithError(err).Fatal("Invalid arguments")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)

	if err != nil {
		logger.WithError(err).Fatalf("Unknown log level: %s", cfg.LogLevel)
	}

	if verbose {
		level = logrus.DebugLevel
	}

	logger.SetLevel(level)

	ctx, cfn := context.WithCancel(context.Background())
	defer cfn()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		logger.Infof("Stopping")
		cfn()
	}()

	if err := run(ctx, cfg, logger, NewConsole(os.Stdout)); err != nil {
		logger.WithError(err).Fatal("Telemetry logger stopped")
	}

	logger.Infof("Telemetry logger stopped. Exiting")
}

// applyArgs applies the optional positional host and port arguments over the config.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 2 {
		return errors.Errorf("expected at most host and port, got %d arguments", len(args))
	}

	if len(args) > 0 {
		cfg.Host = args[0]
	}

	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])

		if err != nil {
			return errors.Wrapf(err, "invalid port: %s", args[1])
		}

		cfg.Port = port
	}

	return nil
}

// run receives telemetry in the background and writes it to lap files until ctx is done
// or the receiver fails.
func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger, console *Console) error {
	if err := os.MkdirAll(cfg.OutputDirectory, 0755); err != nil {
		return errors.Wrapf(err, "could not create output directory %s", cfg.OutputDirectory)
	}

	client, err := telemetry.NewClient(cfg.Host, cfg.Port, telemetry.DefaultTimeout, logger)

	if err != nil {
		return err
	}

	logger.Infof("Waiting for a session from %s", client.RemoteAddress())

	receiver := telemetry.NewReceiver(client, cfg.QueueSize, logger)

	g, receiverCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return receiver.Run(receiverCtx)
	})

	g.Go(func() error {
		select {
		case session, ok := <-receiver.Session():
			if !ok {
				return nil
			}

			return record(ctx, cfg, session, receiver.Updates(), logger, console)
		case <-ctx.Done():
			return nil
		}
	})

	return g.Wait()
}

// record consumes updates for a single session on the calling goroutine.
func record(ctx context.Context, cfg *config.Config, session acudp.SessionInfo, updates <-chan acudp.Update, logger *logrus.Logger, console *Console) error {
	console.Connected(session)

	lapConfig := laplog.Config{
		OutputDirectory:   cfg.OutputDirectory,
		SessionStart:      time.Now(),
		MovementThreshold: cfg.MovementThreshold,
	}

	manifest := laplog.NewManifest(session, lapConfig)
	sessionLogger := logger.WithField("session_id", manifest.SessionID())

	if err := manifest.Save(); err != nil {
		return err
	}

	lapLogger := laplog.NewLapLogger(session, lapConfig, sessionLogger)

	lapLogger.OnLapCompleted(console.LapCompleted)
	lapLogger.OnLapCompleted(func(lap laplog.LapSummary) {
		manifest.AddLap(lap)

		if err := manifest.Save(); err != nil {
			sessionLogger.WithError(err).Error("Could not save session manifest")
		}
	})

	if cfg.HistoryDatabase != "" {
		history, err := laplog.OpenHistory(cfg.HistoryDatabase)

		if err != nil {
			return err
		}

		defer history.Close()

		if best, err := history.BestLap(session.CarName, session.TrackName, session.TrackConfig); err == nil {
			console.PersonalBest(best)
		}

		lapLogger.OnLapCompleted(history.Recorder(manifest.SessionID(), sessionLogger))
	}

	if cfg.HTTPPort > 0 {
		monitoring.InitMonitoring()

		h := monitoring.NewHTTP(cfg.HTTPPort, func() interface{} {
			return lapLogger.Status()
		}, sessionLogger)

		if err := h.Listen(); err != nil {
			return err
		}

		defer h.Close()
	}

	err := laplog.Consume(ctx, updates, laplog.DefaultPollInterval, lapLogger)

	if closeErr := lapLogger.Close(); err == nil {
		err = closeErr
	}

	manifest.Finish(time.Now(), lapLogger.Status())

	if saveErr := manifest.Save(); err == nil {
		err = saveErr
	}

	console.Summary(lapLogger.Status(), time.Since(lapConfig.SessionStart))

	return err
}
