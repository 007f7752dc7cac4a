package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	monoprice "github.com/abates/monoprice-zones"
	"github.com/abates/monoprice-zones/ampsim"
	"github.com/abates/monoprice-zones/api"
	"github.com/abates/monoprice-zones/config"
	"github.com/abates/monoprice-zones/logging"
	"github.com/abates/monoprice-zones/metrics"
	"github.com/abates/monoprice-zones/mqtt"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	port := flag.String("port", "", "serial device (overrides the configuration)")
	addr := flag.String("addr", "", "HTTP listen address (overrides the configuration)")
	simulate := flag.Int("simulate", 0, "simulate a chain of N amplifiers instead of opening a serial port")
	verbose := flag.Bool("verbose", false, "log every line sent and received")
	flag.Parse()

	cfg, err := config.Read(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *simulate > 0 {
		cfg.Simulate.Enabled = true
		cfg.Simulate.Amps = *simulate
	}
	if *verbose {
		cfg.Serial.Verbose = true
		cfg.Logging.Level = "trace"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Configure(cfg.Logging.Level, cfg.Logging.Format)

	open := monoprice.SerialOpener(cfg.Serial.Port, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	if cfg.Simulate.Enabled {
		amps := cfg.Simulate.Amps
		open = func() (io.ReadWriter, error) {
			return ampsim.NewChain(amps), nil
		}
		logger.Warn().Int("amps", amps).Msg("Using simulated amplifiers")
	}

	options := []monoprice.TransportOption{
		monoprice.TimeoutOption(cfg.Serial.Timeout),
		monoprice.ObserverOption(metrics.Observer{}),
		monoprice.TransportLogger(logger),
	}
	if cfg.Serial.Verbose {
		options = append(options, monoprice.VerboseOption())
	}
	transport, err := monoprice.Dial(open, options...)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.Serial.Port).Msg("Failed to open serial port")
	}
	defer transport.Close()

	sources, err := cfg.SourceLabels()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid source labels")
	}
	amp := monoprice.New(transport, monoprice.SourcesOption(sources), monoprice.LoggerOption(logger))
	zones, err := amp.Discover()
	if err != nil {
		logger.Fatal().Err(err).Msg("Zone discovery failed")
	}
	logger.Info().Interface("zones", zones).Msg("Amp is setup, creating router")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.MQTT.Enabled {
		topics := mqtt.Topics{Prefix: cfg.MQTT.Prefix}
		client, err := mqtt.Connect(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         byte(cfg.MQTT.QoS),
			StatusTopic: topics.Status(),
		})
		if err != nil {
			logger.Fatal().Err(err).Str("broker", cfg.MQTT.Broker).Msg("Failed to connect to MQTT broker")
		}
		defer client.Close()

		bridge := mqtt.NewBridge(client, amp,
			mqtt.TopicsOption(topics),
			mqtt.PollIntervalOption(cfg.MQTT.PollInterval),
			mqtt.LoggerOption(logger),
		)
		if err := bridge.Subscribe(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to subscribe to command topics")
		}
		go bridge.Run(ctx)
	}

	srv := &http.Server{
		Handler:      api.New(amp, api.ReopenOption(transport), api.LoggerOption(logger)),
		Addr:         cfg.HTTP.Addr,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("HTTP server failed")
	}
	logger.Info().Msg("Shutting down")
}
