package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"presencelight/config"
	"presencelight/internal/api"
	"presencelight/internal/core"
	"presencelight/internal/drivers"
	"presencelight/internal/drivers/keylight"
	"presencelight/internal/drivers/passive"
	"presencelight/internal/identity"
	"presencelight/internal/logging"
	"presencelight/internal/mqtt"
	"presencelight/internal/poller"
	"presencelight/internal/presence"
	"presencelight/internal/storage/sqlite"
)

const (
	shutdownTimeout    = 5 * time.Second
	mqttConnectTimeout = 10 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "presencelight: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := config.NewFlagSet("presencelight")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flags)
			return nil
		}
		return err
	}
	if help, _ := flags.GetBool("help"); help {
		printHelp(flags)
		return nil
	}

	// --thumbprint only needs the certificate path
	if thumbprintOnly, _ := flags.GetBool("thumbprint"); thumbprintOnly {
		cfg, err := config.Read(flags)
		if err != nil {
			return err
		}
		if cfg.Identity.PEMPath == "" {
			return fmt.Errorf("%w: PEM_PATH", config.ErrMissingRequired)
		}
		thumbprint, err := identity.ThumbprintFile(cfg.Identity.PEMPath)
		if err != nil {
			return fmt.Errorf("failed to read certificate: %w", err)
		}
		fmt.Println(thumbprint)
		return nil
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format:  cfg.Logging.Format,
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Service: "presencelight",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runService(ctx, cfg, logger); err != nil {
		logger.Error("presencelight stopped with error", "error", err)
		return err
	}
	return nil
}

func runService(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting presencelight",
		"user_id", cfg.Presence.UserID,
		"keylight", cfg.Light.Host,
		"poll_interval", cfg.Poll.Interval,
		"dry_run", cfg.Light.DryRun,
	)

	thumbprint, err := identity.ThumbprintFile(cfg.Identity.PEMPath)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	logger.Info("certificate loaded", "path", cfg.Identity.PEMPath, "thumbprint", thumbprint)

	creds := logging.NewCredentialProviderLogger(
		identity.NewCertificateProvider(identity.Config{
			TenantID:     cfg.Identity.TenantID,
			ClientID:     cfg.Identity.ClientID,
			CertPath:     cfg.Identity.PEMPath,
			AuthorityURL: cfg.Identity.AuthorityURL,
			Lifetime:     cfg.Identity.TokenLifetime,
			Timeout:      cfg.Identity.Timeout,
		}, logger),
		logger,
	)

	presenceClient := logging.NewPresenceClientLogger(
		presence.NewGraphClient(cfg.Presence.GraphBaseURL, cfg.Presence.UserID, cfg.Presence.Timeout, logger),
		logger,
	)

	light, err := selectLight(cfg, logger)
	if err != nil {
		return err
	}

	classifier := core.NewClassifier(cfg.Presence.ActiveActivities)
	logger.Info("active activities", "activities", classifier.Activities())

	loop := poller.New(creds, presenceClient, light, classifier, poller.RealClock{}, poller.Config{
		Interval:     cfg.Poll.Interval,
		SafetyMargin: cfg.Poll.SafetyMargin,
	}, logger)

	routerConfig := api.RouterConfig{
		Status: loop,
		DryRun: cfg.Light.DryRun,
		APIKey: cfg.API.APIKey,
		Logger: logger,
	}

	// Transition history
	if cfg.History.DBPath != "" {
		logger.Info("opening transition history", "path", cfg.History.DBPath)
		db, err := sqlite.New(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		loop.AddObserver(db)
		routerConfig.Transitions = db
	}

	// MQTT publisher
	if cfg.MQTT.Broker != "" {
		publisher := mqtt.New(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		}, logger)
		if err := publisher.Start(ctx, mqttConnectTimeout); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := publisher.Stop(stopCtx); err != nil {
				logger.Warn("mqtt disconnect failed", "error", err)
			}
		}()

		loop.AddObserver(publisher)
	}

	// Status API
	if cfg.API.Addr != "" {
		server := &http.Server{
			Addr:         cfg.API.Addr,
			Handler:      api.NewRouter(routerConfig),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logger.Info("starting status API", "addr", cfg.API.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status API failed", "error", err)
			}
		}()

		defer func() {
			logger.Info("shutting down status API")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status API shutdown error", "error", err)
			}
		}()
	}

	if err := loop.Run(ctx); err != nil {
		return err
	}

	logger.Info("poll loop finished, shutting down")
	return nil
}

// selectLight registers the light drivers and picks the configured one
func selectLight(cfg *config.Config, logger *slog.Logger) (core.LightController, error) {
	registry := drivers.NewRegistry()
	if err := registry.Register(keylight.NewDriver(keylight.Config{
		Host:    cfg.Light.Host,
		Port:    cfg.Light.Port,
		Timeout: cfg.Light.Timeout,
	}, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(passive.NewDriver(logger)); err != nil {
		return nil, err
	}

	name := keylight.DriverName
	if cfg.Light.DryRun {
		logger.Info("dry run: light commands will be logged, not sent")
		name = passive.DriverName
	}

	driver, err := registry.Get(name)
	if err != nil {
		return nil, err
	}
	logger.Info("light driver selected", "driver", driver.Name(), "available", registry.List())

	return logging.NewLightControllerLogger(driver, logger), nil
}

func printHelp(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `presencelight turns an Elgato Key Light on while you are in a Teams call.

Usage: presencelight [flags]

Required environment: PEM_PATH, TENANT_ID, CLIENT_ID, USER_ID, KEYLIGHT_IP

Flags:
%s`, flags.FlagUsages())
}
