package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"justapengu.in/actelemetry/internal/acsim"
	"justapengu.in/actelemetry/pkg/acudp"
)

var (
	address    string
	carName    string
	driverName string
	trackName  string
	config     string
	radius     float64
	speed      float64
	interval   time.Duration
)

func init() {
	flag.StringVar(&address, "addr", "127.0.0.1:9996", "address to serve telemetry on")
	flag.StringVar(&carName, "car", "ks_mazda_mx5_cup", "car name to report")
	flag.StringVar(&driverName, "driver", "Simulated Driver", "driver name to report")
	flag.StringVar(&trackName, "track", "magione", "track name to report")
	flag.StringVar(&config, "config", "", "track config to report")
	flag.Float64Var(&radius, "radius", 150, "circuit radius in metres")
	flag.Float64Var(&speed, "speed", 160, "car speed in km/h")
	flag.DurationVar(&interval, "interval", 20*time.Millisecond, "time between updates")
	flag.Parse()
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	session := acudp.SessionInfo{
		CarName:     carName,
		DriverName:  driverName,
		TrackName:   trackName,
		TrackConfig: config,
		Identifier:  4242,
		Version:     1,
	}

	sim := acsim.New(session, acsim.Circuit(radius, float32(speed), interval), interval, logger)

	if err := sim.Listen(address); err != nil {
		logger.WithError(err).Fatal("Could not listen")
	}

	ctx, cfn := context.WithCancel(context.Background())
	defer cfn()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		logger.Infof("Stopping")
		cfn()
	}()

	logger.Infof("Serving %s on %s", session, sim.Addr())

	if err := sim.Serve(ctx); err != nil {
		logger.WithError(err).Fatal("Simulator stopped")
	}
}
