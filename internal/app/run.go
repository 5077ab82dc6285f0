package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/zberg/go-smartclim/internal/config"
	"github.com/zberg/go-smartclim/internal/domoticz"
	"github.com/zberg/go-smartclim/internal/httpapi"
	"github.com/zberg/go-smartclim/internal/monitor"
	"github.com/zberg/go-smartclim/pkg/smartclim"
)

const shutdownTimeout = 5 * time.Second

// publisher forwards readings to the home automation host.
type publisher interface {
	monitor.Sink
	Connect(ctx context.Context) error
	Disconnect()
}

// deps are the outside-world collaborators of the service.
type deps struct {
	read      monitor.ReadFunc
	publisher publisher
	accessLog io.Writer

	// listening is called with the bound HTTP address, if any.
	listening func(net.Addr)
}

// Run measures the configured sensor on its schedule and pushes every
// reading to Domoticz until ctx is done.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	return run(ctx, cfg, logger, deps{
		read:      sensorReader(cfg, logger),
		publisher: domoticz.NewPublisher(cfg, logger),
		accessLog: os.Stdout,
	})
}

func sensorReader(cfg config.Config, logger *slog.Logger) monitor.ReadFunc {
	return func(ctx context.Context) (smartclim.Reading, error) {
		return smartclim.ReadOnce(ctx, cfg.DeviceMAC,
			smartclim.WithAdapter(cfg.Adapter),
			smartclim.WithRetries(cfg.Retries),
			smartclim.WithLogger(logger),
		)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, d deps) error {
	logger.Info("initializing monitor",
		"addr", cfg.DeviceMAC,
		"adapter", cfg.Adapter,
		"interval", cfg.MeasureInterval,
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_topic", cfg.MQTTTopic,
		"domoticz_idx", cfg.DomoticzIdx,
	)

	mon, err := monitor.New(d.read, d.publisher, monitor.Options{
		DeviceMAC: cfg.DeviceMAC,
		Interval:  cfg.MeasureInterval,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		ln, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("http api listen %s: %w", cfg.HTTPAddr, err)
		}
		srv := &http.Server{
			Handler:           httpapi.NewRouter(mon, d.accessLog, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http api failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http api shutdown", "error", err)
			}
		}()

		logger.Info("http api listening", "addr", ln.Addr().String())
		if d.listening != nil {
			d.listening(ln.Addr())
		}
	}

	defer d.publisher.Disconnect()
	go func() {
		// Connect retries internally; measurements taken before the broker is
		// reachable fail to publish and are rescheduled by the monitor.
		if err := d.publisher.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("mqtt connect failed", "error", err)
		}
	}()

	err = mon.Run(ctx)
	logger.Info("monitor shutting down")
	return err
}
