// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"fmt"
	rawLog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/xcherryio/xtimer/common/clock"
	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/common/metrics"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/invoker"
	"github.com/xcherryio/xtimer/notification"
	"github.com/xcherryio/xtimer/persistence"
	"github.com/xcherryio/xtimer/persistence/memory"
	"github.com/xcherryio/xtimer/persistence/sql"
	"github.com/xcherryio/xtimer/service/api"
	"github.com/xcherryio/xtimer/service/timerservice"
)

const ApiServiceName = "api"
const TimerServiceName = "timer"

const FlagConfig = "config"
const FlagService = "service"

func StartXTimerServerCli(c *cli.Context) {
	// register interrupt signal for graceful shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := c.String(FlagConfig)
	services := getServices(c)

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		rawLog.Fatalf("Unable to load config for path %v because of error %v", configPath, err)
	}
	shutdownFunc := StartXTimerServer(rootCtx, cfg, services)
	// wait for os signals
	<-rootCtx.Done()

	ctx, cancF := context.WithTimeout(context.Background(), time.Second*10)
	defer cancF()
	err = shutdownFunc(ctx)
	if err != nil {
		fmt.Println("shutdown error:", err)
	}
}

type GracefulShutdown func(ctx context.Context) error

func StartXTimerServer(rootCtx context.Context, cfg *config.Config, services map[string]bool) GracefulShutdown {
	if len(services) == 0 {
		services = map[string]bool{ApiServiceName: true, TimerServiceName: true}
	}

	zapLogger, err := cfg.Log.NewZapLogger()
	if err != nil {
		rawLog.Fatalf("Unable to create a new zap logger %v", err)
	}
	logger := log.NewLogger(zapLogger)
	logger.Info("config is loaded", tag.Value(cfg.String()))
	err = cfg.ValidateAndSetDefaults()
	if err != nil {
		logger.Fatal("config is invalid", tag.Error(err))
	}
	if services[ApiServiceName] && !services[TimerServiceName] {
		logger.Fatal("api service requires the timer service")
	}

	store := newTimerPersistence(cfg, logger)
	publisher := newPublisher(cfg, logger)
	m := metrics.NewMetrics()

	svcCfg := cfg.TimerService
	timerLogger := logger.WithTags(tag.Service(TimerServiceName))
	timedObjectInvoker := invoker.NewHTTPInvoker(
		svcCfg.TimedObjectId, svcCfg.Invoker.Url, svcCfg.Invoker.Timeout, timerLogger)
	timerService := timerservice.NewTimerServiceImpl(
		rootCtx, svcCfg, store, timedObjectInvoker, publisher, clock.NewRealTimeSource(), timerLogger, m)

	if services[TimerServiceName] {
		err = timerService.Start(rootCtx)
		if err != nil {
			logger.Fatal("Failed to start timer service", tag.Error(err))
		}
	}

	var apiServer api.Server
	if services[ApiServiceName] {
		apiServer = api.NewDefaultAPIServerWithGin(
			rootCtx, *cfg, timerService, m, logger.WithTags(tag.Service(ApiServiceName)))
		err = apiServer.Start()
		if err != nil {
			logger.Fatal("Failed to start api server", tag.Error(err))
		}
	}

	return func(ctx context.Context) error {
		// graceful shutdown
		var errs error
		// first stop api server so that no more timers are created
		if apiServer != nil {
			errs = multierr.Append(errs, apiServer.Stop(ctx))
		}
		errs = multierr.Append(errs, timerService.Stop(ctx))
		errs = multierr.Append(errs, publisher.Close())
		errs = multierr.Append(errs, store.Close())
		return errs
	}
}

func newTimerPersistence(cfg *config.Config, logger log.Logger) persistence.TimerPersistence {
	if cfg.Database.SQL == nil {
		logger.Warn("no database is configured, persistent timers are kept in memory")
		return memory.NewMemoryTimerPersistence()
	}
	store, err := sql.NewSQLTimerPersistence(*cfg.Database.SQL, logger)
	if err != nil {
		logger.Fatal("error on persistence setup", tag.Error(err))
	}
	return store
}

func newPublisher(cfg *config.Config, logger log.Logger) notification.Publisher {
	if cfg.Notification.Pulsar == nil {
		return notification.NewNoopPublisher()
	}
	publisher, err := notification.NewPulsarPublisher(*cfg.Notification.Pulsar, logger)
	if err != nil {
		logger.Fatal("error on pulsar publisher setup", tag.Error(err))
	}
	return publisher
}

func getServices(c *cli.Context) map[string]bool {
	val := strings.TrimSpace(c.String(FlagService))
	tokens := strings.Split(val, ",")

	if len(tokens) == 0 {
		rawLog.Fatal("No services specified for starting")
	}

	services := map[string]bool{}
	for _, token := range tokens {
		t := strings.TrimSpace(token)
		services[t] = true
	}

	return services
}
