package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/careaccess/go-fhir-gateway/accounts"
	accountsfake "github.com/careaccess/go-fhir-gateway/accounts/repofake"
	appsfake "github.com/careaccess/go-fhir-gateway/applications/repofake"
	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/fhir"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/grants"
	grantsfake "github.com/careaccess/go-fhir-gateway/grants/repofake"
	"github.com/careaccess/go-fhir-gateway/identity"
	"github.com/careaccess/go-fhir-gateway/internal/config"
	"github.com/careaccess/go-fhir-gateway/server"
	"github.com/careaccess/go-fhir-gateway/tokens"
	tokensfake "github.com/careaccess/go-fhir-gateway/tokens/repofake"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running gateway: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Gateway stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	displayAppname(cfg.AppName)

	logger := newLogger(cfg.LogLevel)

	// The subscriber table is built once, before any request is served.
	bus := audit.NewBus(logger)
	audit.RegisterSubscribers(bus, audit.NewSinks(logger))

	userRepo := accountsfake.NewFakeUserRepo()
	crosswalkRepo := accountsfake.NewFakeCrosswalkRepo()
	appRepo := appsfake.NewFakeApplicationRepo()

	if _, err := accounts.CreateSuperUserFromEnv(cfg.Bootstrap, userRepo); err != nil {
		if errors.Is(err, accounts.MissingBootstrapConfigErr) {
			logger.Warn().Err(err).Msg("superuser bootstrap skipped")
		} else {
			return fmt.Errorf("superuser bootstrap: %w", err)
		}
	}

	tokenLifecycle, err := tokens.NewLifecycle(tokensfake.NewFakeTokenRepo(), bus)
	if err != nil {
		return fmt.Errorf("tokens.NewLifecycle: %w", err)
	}
	grantLifecycle, err := grants.NewLifecycle(grantsfake.NewFakeGrantRepo(), tokenLifecycle, bus)
	if err != nil {
		return fmt.Errorf("grants.NewLifecycle: %w", err)
	}
	identityClient, err := identity.New(cfg.Identity, bus)
	if err != nil {
		return fmt.Errorf("identity.New: %w", err)
	}
	mediator, err := fhir.NewMediator(cfg.FHIR, bus)
	if err != nil {
		return fmt.Errorf("fhir.NewMediator: %w", err)
	}

	gateway, err := server.New(*cfg, logger, server.Deps{
		Users:      userRepo,
		Crosswalks: crosswalkRepo,
		Apps:       appRepo,
		Tokens:     tokenLifecycle,
		Grants:     grantLifecycle,
		Identity:   identityClient,
		Mediator:   mediator,
		Bus:        bus,
		Flows:      flowtrace.NewInMemoryRepo(),
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.Port, Handler: gateway}
	go listenAndServe(httpServer, logger)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func newLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(logLevel).With().Timestamp().Logger()
}

func listenAndServe(httpServer *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", httpServer.Addr).Msg("gateway listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("gateway stopped listening")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
