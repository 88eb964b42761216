// Package main runs the quotelane API server: the hybrid browser
// orchestration engine behind an HTTP task-lifecycle surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotelane/quotelane/pkg/api"
	"github.com/quotelane/quotelane/pkg/artifacts"
	"github.com/quotelane/quotelane/pkg/assist"
	"github.com/quotelane/quotelane/pkg/config"
	"github.com/quotelane/quotelane/pkg/flow"
	"github.com/quotelane/quotelane/pkg/hybrid"
	"github.com/quotelane/quotelane/pkg/logging"
	"github.com/quotelane/quotelane/pkg/resolve"
	"github.com/quotelane/quotelane/pkg/session"
	"github.com/quotelane/quotelane/pkg/transport/local"
	"github.com/quotelane/quotelane/pkg/transport/remote"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("quotelane v%s\n", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "quotelane: %v\n", err)
		os.Exit(1)
	}
}

// run composes the whole process explicitly: config, logger, transports,
// engine, HTTP server. There is no shared global state; everything a
// component needs is handed to it here.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("main")
	if err != nil {
		// The fallback logger still works; note it and continue.
		fmt.Fprintf(os.Stderr, "quotelane: file logging unavailable: %v\n", err)
	}
	defer logger.Close()
	logger.Infof("quotelane v%s starting (run %s)", version, logger.RunID())

	whitelist, err := config.NewDomainWhitelist(cfg.AllowedDomains)
	if err != nil {
		return err
	}

	artifactDir, err := artifacts.New(cfg.Artifacts.Dir, logger)
	if err != nil {
		return err
	}

	driver := local.New(local.Options{
		Headless:       cfg.Browser.Headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		TimeoutMillis:  cfg.Browser.ActionTimeoutMS,
		MaxContexts:    cfg.Browser.MaxContexts,
		IdleTimeout:    time.Duration(cfg.Browser.IdleTimeoutMinutes) * time.Minute,
		Logger:         logger,
	})
	defer driver.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The remote automation server is an optional accelerant; failure to
	// reach it downgrades to local-only rather than aborting startup.
	var remoteClient *remote.Client
	if cfg.Remote.Enabled {
		remoteClient = remote.New(cfg.Remote.Endpoint, remote.Options{
			ConnectRetries: cfg.Remote.ConnectRetries,
			RetryBackoff:   cfg.Remote.RetryBackoff.Std(),
			CommandTimeout: cfg.Remote.CommandTimeout.Std(),
			Logger:         logger,
		})
		if err := remoteClient.Connect(ctx); err != nil {
			logger.Warnf("remote automation server unavailable, running local-only: %v", err)
		} else {
			defer remoteClient.Close()
			logger.Infof("connected to remote automation server at %s", cfg.Remote.Endpoint)
		}
	}

	var actions *hybrid.Actions
	if remoteClient != nil {
		actions = hybrid.New(remoteClient, driver, logger)
	} else {
		actions = hybrid.New(nil, driver, logger)
	}

	advisor, err := assist.New(cfg.Assist, logger)
	if err != nil {
		return err
	}

	deps := flow.Deps{
		Store:     session.NewStore(),
		Actions:   actions,
		Resolver:  resolve.New(),
		Artifacts: artifactDir,
		Whitelist: whitelist,
		Cleaner:   driver,
		Logger:    logger,
	}
	if advisor != nil {
		deps.Advisor = advisor
	}

	engine := flow.NewEngine(deps)
	for _, carrier := range flow.BuiltinCarriers() {
		engine.RegisterCarrier(carrier)
	}

	// Idle browser contexts from abandoned tasks are swept periodically.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				driver.SweepIdle()
			}
		}
	}()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
