// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"memory-animation/internal/api/http"
	"memory-animation/internal/api/http/middleware"
	"memory-animation/internal/app"
	"memory-animation/pkg/log"
	"memory-animation/pkg/tracing"
	"memory-animation/pkg/utils"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与会话清理）
type App struct {
	config       *app.Bootstrap
	router       *http.Router
	middleware   *middleware.Middleware
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
	stopSweep    context.CancelFunc
	sweepDone    chan struct{}
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config

	handler := http.NewHandler(bootstrap.Sessions)
	handler.SetNegotiation(bootstrap.Negotiation)
	handler.SetDefaultDeviceMemory(cfg.Animation.DefaultDeviceMemoryLimit)
	handler.SetCookie(cfg.Session.CookieName, cfg.SessionTTL())

	var origins []string
	if cfg.API.CORS.Enable {
		origins = cfg.API.CORS.AllowOrigins
	}
	mw := middleware.NewMiddleware(origins...)
	router := http.NewRouter(handler, mw)
	router.SetMetricsEnabled(cfg.Monitoring.Prometheus.Enable)
	if cfg.API.Middleware.RateLimit {
		router.SetRateLimit(cfg.API.Middleware.RateLimitRPS, cfg.API.Middleware.RateLimitBurst)
	}

	bootstrap.Logger.Info("动画门控策略",
		"threshold_gb", bootstrap.Policy.Threshold,
		"unsupported", string(bootstrap.Policy.Unsupported),
		"cache", cfg.Storage.Cache.Type,
	)
	return &App{config: bootstrap, router: router, middleware: mw}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.config.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 的日志输出、级别对齐
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(a.config.Config.Log.Level))
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(a.config.Logger.Output()),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	var opts []config.Option
	var tracerCfg *hertztracing.Config
	if tc := a.config.Config.Monitoring.Tracing; tc.Enable {
		serviceName := utils.CoalesceString(tc.ServiceName, "animgate-api")
		exportEndpoint := utils.CoalesceString(tc.ExportEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if exportEndpoint != "" {
			if tc.Protocol == "http" {
				tp, err := tracing.InitTracer(tracing.OTelConfig{
					ServiceName:    serviceName,
					ExportEndpoint: exportEndpoint,
					Insecure:       tc.Insecure,
				})
				if err != nil {
					a.config.Logger.Warn("OTLP/HTTP exporter 初始化失败，跳过链路追踪", "error", err)
				} else {
					a.otelProvider = tp
				}
			} else {
				popts := []provider.Option{
					provider.WithServiceName(serviceName),
					provider.WithExportEndpoint(exportEndpoint),
				}
				if tc.Insecure {
					popts = append(popts, provider.WithInsecure())
				}
				a.otelProvider = provider.NewOpenTelemetryProvider(popts...)
			}
			if a.otelProvider != nil {
				tracerOpt, cfg := hertztracing.NewServerTracer()
				opts = append(opts, tracerOpt)
				tracerCfg = cfg
				a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint, "protocol", tc.Protocol)
			}
		}
	}
	a.hertz = a.router.Build(addr, opts...)
	if tracerCfg != nil {
		a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
	}

	a.startSweep()
	return a.hertz.Run()
}

// startSweep 周期清理空闲会话、过期快照与空闲 IP 限流器（间隔为会话有效期的一半）
func (a *App) startSweep() {
	ttl := a.config.Config.SessionTTL()
	ctx, cancel := context.WithCancel(context.Background())
	a.stopSweep = cancel
	a.sweepDone = make(chan struct{})
	go func() {
		defer close(a.sweepDone)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.config.Sessions.Sweep(ctx, ttl); err != nil {
					a.config.Logger.Warn("会话清理失败", "error", err)
				}
				a.middleware.EvictIdle(ttl)
			}
		}
	}()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.stopSweep != nil {
		a.stopSweep()
		<-a.sweepDone
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return a.config.Close()
}
