// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/common/metrics"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/service/timerservice"
)

const (
	PathTimers  = "/api/v1/xtimer/timers"
	PathTimer   = "/api/v1/xtimer/timers/:id"
	PathMetrics = "/metrics"
)

type defaultSever struct {
	rootCtx    context.Context
	cfg        config.Config
	logger     log.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func NewDefaultAPIServerWithGin(
	rootCtx context.Context, cfg config.Config, timerService timerservice.Service, m *metrics.Metrics, logger log.Logger,
) Server {
	engine := NewGinEngine(NewServiceImpl(timerService, logger), m, logger)

	svrCfg := cfg.ApiService.HttpServer
	httpServer := &http.Server{
		Addr:              svrCfg.Address,
		ReadTimeout:       svrCfg.ReadTimeout,
		WriteTimeout:      svrCfg.WriteTimeout,
		ReadHeaderTimeout: svrCfg.ReadHeaderTimeout,
		IdleTimeout:       svrCfg.IdleTimeout,
		MaxHeaderBytes:    svrCfg.MaxHeaderBytes,
		TLSConfig:         svrCfg.TLSConfig,
		Handler:           engine,
		BaseContext: func(listener net.Listener) context.Context {
			// for graceful shutdown
			return rootCtx
		},
	}

	return &defaultSever{
		rootCtx:    rootCtx,
		cfg:        cfg,
		logger:     logger,
		engine:     engine,
		httpServer: httpServer,
	}
}

// NewGinEngine registers the timer routes, and the metrics route when m is not nil
func NewGinEngine(svc Service, m *metrics.Metrics, logger log.Logger) *gin.Engine {
	engine := gin.Default()
	handler := newGinHandler(svc, logger)

	engine.POST(PathTimers, handler.CreateTimer)
	engine.GET(PathTimers, handler.ListTimers)
	engine.GET(PathTimer, handler.DescribeTimer)
	engine.DELETE(PathTimer, handler.CancelTimer)
	if m != nil {
		engine.GET(PathMetrics, gin.WrapH(m.Handler()))
	}
	return engine
}

func (s defaultSever) Start() error {
	go func() {
		err := s.httpServer.ListenAndServe()
		s.logger.Info("Http Server for API service is closed", tag.Error(err))
	}()

	return nil
}

func (s defaultSever) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
