// Command svitlobot watches a Home Assistant voltage sensor, derives a
// debounced power present/absent signal and pings the SvitloBot API while
// power is present.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alexprokopov1992/svitlobot-HA/hass"
	"github.com/alexprokopov1992/svitlobot-HA/internal/metrics"
	"github.com/alexprokopov1992/svitlobot-HA/internal/mqtt"
	"github.com/alexprokopov1992/svitlobot-HA/internal/svitlobot"
	"github.com/alexprokopov1992/svitlobot-HA/internal/watchdog"
	"github.com/alexprokopov1992/svitlobot-HA/pkg/retry"
)

func main() {
	hassHost := flag.String("hass-host", "ws://localhost:8123", "Home Assistant websocket host")
	hassToken := flag.String("hass-token", os.Getenv("HASS_TOKEN"), "Home Assistant long-lived access token (defaults to $HASS_TOKEN)")
	entityID := flag.String("voltage-entity-id", "", "Entity to watch (required)")
	channelKey := flag.String("svitlobot-channel-key", "", "SvitloBot channel key (empty disables pinging)")
	debounce := flag.Int("debounce-seconds", int(watchdog.DefaultDebounce/time.Second), "Debounce window in seconds (0 = immediate)")
	staleTimeout := flag.Int("stale-timeout-seconds", int(watchdog.DefaultStaleTimeout/time.Second), "Stale observation timeout in seconds (0 = disabled)")
	refresh := flag.Int("refresh-seconds", int(watchdog.DefaultRefresh/time.Second), "Forced entity refresh period in seconds (0 = disabled)")
	threshold := flag.Float64("power-on-threshold", 0, "Voltage below which power counts as absent (0 = disabled)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Metrics/state HTTP listen address (empty disables)")
	mqttBroker := flag.String("mqtt-broker", "", "MQTT broker URL for sensor exposure (empty disables)")
	logLevel := flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")

	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(*logLevel); err == nil {
		log.Logger = log.Logger.Level(level)
	}

	cfg := watchdog.Config{
		EntityID:         *entityID,
		ChannelKey:       *channelKey,
		Debounce:         time.Duration(*debounce) * time.Second,
		StaleTimeout:     time.Duration(*staleTimeout) * time.Second,
		Refresh:          time.Duration(*refresh) * time.Second,
		PowerOnThreshold: *threshold,
	}

	if err := run(cfg, *hassHost, *hassToken, *metricsAddr, *mqttBroker); err != nil {
		log.Fatal().Err(err).Msg("svitlobot watchdog failed")
	}
}

func run(cfg watchdog.Config, hassHost, hassToken, metricsAddr, mqttBroker string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if hassToken == "" {
		return fmt.Errorf("invalid configuration: Home Assistant token is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := hass.NewClient(hassHost, hassToken)

	err := retry.Do(ctx, func() error {
		if err := client.Connect(ctx); err != nil {
			return err
		}

		authCtx, authCancel := context.WithTimeout(ctx, 10*time.Second)
		defer authCancel()
		return client.WaitAuthenticated(authCtx)
	}, func(error) bool { return true }, retry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to establish Home Assistant session: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Err(err).Msg("Failed to close Home Assistant connection")
		}
	}()
	metrics.HassConnectionStatus.Set(1)
	defer metrics.HassConnectionStatus.Set(0)

	observer, err := watchdog.NewObserver(ctx, client, cfg.EntityID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to entity changes: %w", err)
	}

	var sinks []watchdog.StatePublisher
	if mqttBroker != "" {
		publisher, err := mqtt.NewPublisher(mqttBroker, "svitlobot-watchdog")
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	watcher := watchdog.NewWatcher(cfg, observer, svitlobot.NewClient(), sinks...)

	if metricsAddr != "" {
		server := metrics.NewServer(metricsAddr, func() any {
			return watcher.Snapshot().Document()
		})
		go func() {
			if err := server.Start(); err != nil {
				log.Err(err).Msg("Metrics server stopped")
			}
		}()
		defer func() {
			if err := server.Shutdown(context.Background()); err != nil {
				log.Err(err).Msg("Failed to shut down metrics server")
			}
		}()
	}

	watcherDone := make(chan error, 1)
	go func() {
		watcherDone <- watcher.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-watcherDone:
		return err
	}

	watcher.Close()
	return nil
}
