// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/Git-Shashi/intellichat/config"
	"github.com/Git-Shashi/intellichat/handlers"
	"github.com/Git-Shashi/intellichat/middleware"
	"github.com/Git-Shashi/intellichat/observability"
	"github.com/Git-Shashi/intellichat/routes"
	"github.com/Git-Shashi/intellichat/services/ai"
	"github.com/Git-Shashi/intellichat/store"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("intellichat")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if cfg.TracingEnabled {
		cleanup, err := initTracer(cfg.OTLPEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	}

	db, err := store.Open(store.DefaultConfig(cfg.DataDir))
	if err != nil {
		log.Fatalf("FATAL: could not open the database: %v", err)
	}
	defer db.Close()

	gc, err := store.NewGCRunner(db, store.DefaultConfig(cfg.DataDir), logger)
	if err != nil {
		log.Fatalf("FATAL: could not create the GC runner: %v", err)
	}
	gc.Start()
	defer gc.Stop()

	conversations := store.NewConversationStore(db)
	messages := store.NewMessageStore(db)

	registry := ai.NewRegistry(ai.RegistryConfig{Timeout: cfg.RequestTimeout})
	orchestrator := ai.NewOrchestrator(registry, config.EnvCredentials{})

	metrics := observability.NewChatMetrics(prometheus.DefaultRegisterer)

	var auth middleware.AuthProvider = middleware.NopAuthProvider{}
	if cfg.AuthToken != "" {
		auth = middleware.StaticTokenProvider{Token: cfg.AuthToken}
	} else {
		slog.Warn("INTELLICHAT_AUTH_TOKEN not set, running without authentication")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("intellichat"))

	routes.SetupRoutes(router, routes.Deps{
		AI:            handlers.NewAIHandler(orchestrator, metrics),
		Conversations: handlers.NewConversationHandler(conversations, messages, orchestrator),
		ChatWS:        handlers.NewChatWSHandler(orchestrator, conversations, messages, metrics),
		Auth:          auth,
	})

	slog.Info("starting server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
