package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/diagstack/dmcollect/internal/collector"
	"github.com/diagstack/dmcollect/internal/config"
	"github.com/diagstack/dmcollect/internal/database"
	"github.com/diagstack/dmcollect/internal/decoder"
	"github.com/diagstack/dmcollect/internal/logging"
	"github.com/diagstack/dmcollect/internal/metrics"
	"github.com/diagstack/dmcollect/internal/protocol/diag"
	"github.com/diagstack/dmcollect/internal/session"
	"github.com/diagstack/dmcollect/internal/transport"
)

const VERSION = "1.0.0"

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path (default: dmcollect.yaml or $DMCOLLECT_CONFIG)")
		version    = flag.Bool("version", false, "Show version information")
		listTypes  = flag.Bool("list-types", false, "List supported log type names and exit")
		generate   = flag.String("generate", "", "Write the diag config command stream to FILE and exit")
		disable    = flag.Bool("disable", false, "Send a disable-all command to the modem and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("dmcollect v%s\n", VERSION)
		return
	}

	if *listTypes {
		for _, name := range diag.TypeNames() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dmcollect: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "dmcollect: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dmcollect: init logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	reg := metrics.NewRegistry()
	m := metrics.NewAppMetrics(reg)

	if *generate != "" {
		if err := generateConfigFile(cfg, logger, m, *generate); err != nil {
			logger.Fatal("generate diag config failed", zap.Error(err))
		}
		return
	}

	if *disable {
		if err := disableLogging(cfg, logger, m); err != nil {
			logger.Fatal("disable failed", zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enable {
		go serveMetrics(cfg.Metrics, reg, logger)
	}

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, zap.NewStdLog(logger.Named("gorm")))
	if err != nil {
		logger.Fatal("open capture database failed", zap.Error(err))
	}
	defer db.Close()

	repo := database.NewCaptureRepository(db.GetDB())
	c := collector.New(cfg, repo, logger.Named("collector"), m)

	logger.Info("dmcollect starting",
		zap.String("version", VERSION),
		zap.String("port", cfg.Serial.Port))

	if err := c.Run(ctx); err != nil {
		logger.Fatal("capture run failed", zap.Error(err))
	}
	logger.Info("dmcollect stopped")
}

// generateConfigFile writes the framed disable+enable command stream to
// path, for replay by other tooling.
func generateConfigFile(cfg *config.Config, logger *zap.Logger, m *metrics.AppMetrics, path string) error {
	names := cfg.Capture.Types
	if len(names) == 0 {
		names = diag.TypeNames()
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	sess := session.New(io.Discard, decoder.HeaderDecoder{}, logger.Named("session"), m)
	if err := sess.WriteDiagConfig(f, names); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("diag config written",
		zap.String("file", path),
		zap.Strings("types", names))
	return nil
}

// disableLogging opens the port just long enough to silence the modem.
func disableLogging(cfg *config.Config, logger *zap.Logger, m *metrics.AppMetrics) error {
	port, err := transport.OpenSerial(transport.Config{
		Port:        cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: cfg.Serial.ReadTimeout,
	})
	if err != nil {
		return err
	}
	defer port.Close()

	sess := session.New(port, decoder.HeaderDecoder{}, logger.Named("session"), m)
	if err := sess.Disable(); err != nil {
		return err
	}

	logger.Info("log reporting disabled", zap.String("port", port.Name()))
	return nil
}

// serveMetrics exposes the Prometheus endpoint until the process exits.
func serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler(reg))

	logger.Info("metrics endpoint up",
		zap.String("addr", cfg.Addr),
		zap.String("path", cfg.Path))
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logger.Error("metrics server failed", zap.Error(err))
	}
}
