package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solar-control/backend/internal/api"
	"github.com/solar-control/backend/internal/archive"
	"github.com/solar-control/backend/internal/config"
	"github.com/solar-control/backend/internal/logbuf"
	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/mqtt"
	"github.com/solar-control/backend/internal/sequence"
	"github.com/solar-control/backend/internal/serialport"
	"github.com/solar-control/backend/internal/session"
	"github.com/solar-control/backend/internal/storage"
	"github.com/solar-control/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Resolve config beside the executable
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "solar-panel.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Advanced.LogLevel)
	defer logger.Sync()

	embeddedMode := web.HasEmbeddedFiles()

	// The traffic log outlives individual serial sessions so the panel keeps
	// its history across reconnects.
	trafficLog := logbuf.New(cfg.Log.RetainedEntries)

	manager := session.NewManager(trafficLog, logger.Named("session"), session.Options{
		PollInterval: cfg.PollInterval(),
		ReadTimeout:  cfg.ReadTimeout(),
		JoinTimeout:  cfg.JoinTimeout(),
		ProbeDelay:   cfg.ProbeDelay(),
	})

	library := sequence.NewLibrary()
	if err := library.LoadDir(cfg.Sequences.Directory); err != nil {
		logger.Warn("Failed to load sequence directory",
			zap.String("dir", cfg.Sequences.Directory), zap.Error(err))
	}
	runner := sequence.NewRunner(manager, library, trafficLog, logger.Named("sequence"))

	exportStore, err := storage.NewLocalStore(cfg.Log.ExportDirectory)
	if err != nil {
		fmt.Printf("Failed to initialize export storage: %v\n", err)
		os.Exit(1)
	}

	// Optional capture archive: every appended entry also lands in DuckDB
	var capture *archive.Store
	if cfg.Log.EnableArchive {
		capture, err = archive.Open(cfg.GetDataDir(), logger.Named("archive"))
		if err != nil {
			logger.Warn("Capture archive disabled", zap.Error(err))
			capture = nil
		} else {
			feed, _ := trafficLog.Subscribe(1024)
			capture.Start(feed)
		}
	}

	// Optional MQTT bridge: retained state snapshots plus error alerts
	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher, err = mqtt.Connect(mqtt.Options{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			TopicPrefix:    cfg.MQTT.TopicPrefix,
			QoS:            byte(cfg.MQTT.QoS),
			ConnectTimeout: time.Duration(cfg.MQTT.ConnectTimeout) * time.Second,
		}, logger.Named("mqtt"))
		if err != nil {
			logger.Warn("MQTT publisher disabled", zap.Error(err))
			publisher = nil
		} else {
			states, _ := manager.SubscribeState(64)
			go func() {
				for state := range states {
					publisher.PublishState(state)
				}
			}()
			alerts, _ := trafficLog.Subscribe(256)
			go func() {
				for entry := range alerts {
					if entry.Tag == models.LogTagError {
						publisher.PublishAlert(entry)
					}
				}
			}()
		}
	}

	e := echo.New()
	api.SetupMiddleware(e)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/health" || path == "/api/ws"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			// The stream stays open for the client's lifetime
			return c.Request().URL.Path == "/api/ws"
		},
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/ws"
		},
	}))

	e.Use(middleware.BodyLimit("1M"))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	deps := &api.Dependencies{
		Controller: manager,
		Stream:     manager,
		Log:        trafficLog,
		Runner:     runner,
		Catalog:    library,
		Exports:    exportStore,
		ListPorts:  serialport.ListPorts,
		Version:    Version,
	}
	if capture != nil {
		deps.Archive = capture
	}
	api.RegisterRoutes(e, api.NewHandlers(deps), api.RouteOptions{
		RequireAuth: cfg.Security.RequireAuth,
		AuthToken:   cfg.Security.AuthToken,
	})

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("Failed to register static routes", zap.Error(err))
		}
	}

	if cfg.Serial.AutoConnect && cfg.Serial.DefaultPort != "" {
		go func() {
			_, err := manager.Connect(cfg.Serial.DefaultPort, cfg.Serial.DefaultBaud,
				models.Revision(cfg.Serial.DefaultRevision))
			if err != nil {
				logger.Warn("Auto-connect failed",
					zap.String("port", cfg.Serial.DefaultPort), zap.Error(err))
			}
		}()
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(configPath, cfg, embeddedMode)

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	// Halt outgoing traffic before tearing the transport down
	runner.Stop()
	if err := manager.Disconnect(); err != nil {
		logger.Warn("Disconnect on shutdown failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Warn("Server shutdown failed", zap.Error(err))
	}

	if publisher != nil {
		publisher.Close()
	}
	if capture != nil {
		if err := capture.Close(); err != nil {
			logger.Warn("Archive close failed", zap.Error(err))
		}
	}
}

// newLogger builds the process logger at the configured level. Console
// encoding keeps the output readable next to the startup banner.
func newLogger(level string) *zap.Logger {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func printBanner(configPath string, cfg *config.AppConfig, embeddedMode bool) {
	mode := "API only"
	if embeddedMode {
		mode = "Embedded panel"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║              SOLAR Control Panel Backend                  ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
