// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianCare/config"
	"github.com/AleutianAI/AleutianCare/evidence"
	"github.com/AleutianAI/AleutianCare/language"
	"github.com/AleutianAI/AleutianCare/llm"
	"github.com/AleutianAI/AleutianCare/routes"
	"github.com/AleutianAI/AleutianCare/search"
	"github.com/AleutianAI/AleutianCare/services"
	"github.com/AleutianAI/AleutianCare/store"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("care-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Load(); err != nil {
		log.Fatalf("failed to load the config: %v", err)
	}
	cfg := config.Global

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	log.Println("Configuring the LLM Client")
	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	serpKey := os.Getenv("SERPAPI_KEY")
	if serpKey == "" {
		slog.Warn("SERPAPI_KEY is not set, search requests will be rejected upstream")
	}
	searchClient, err := search.NewClient(search.Config{
		APIKey:            serpKey,
		AllowedDomains:    cfg.Search.AllowedDomains,
		MaxResults:        cfg.Search.MaxResults,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
	})
	if err != nil {
		log.Fatalf("Failed to initialize the search client: %v", err)
	}

	aggOpts := []evidence.Option{evidence.WithFetchLimit(cfg.Evidence.FetchCharLimit)}
	if cfg.Evidence.FetchPages {
		aggOpts = append(aggOpts,
			evidence.WithPageFetcher(evidence.NewHTTPFetcher(nil), cfg.Evidence.FetchParallel))
	}
	aggregator := evidence.NewAggregator(cfg.Evidence.CharBudget, aggOpts...)

	storeOpts := []store.MemoryStoreOption{store.WithMaxTurns(cfg.Store.MaxTurns)}
	if cfg.Store.Path != "" {
		persister, err := store.NewPersister(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open the conversation store: %v", err)
		}
		storeOpts = append(storeOpts, store.WithPersister(persister))
	}
	convStore := store.NewMemoryStore(storeOpts...)
	defer convStore.Close()

	if cfg.Store.TTL > 0 {
		janitor := store.NewJanitor(convStore, cfg.Store.TTL, cfg.Store.JanitorInterval)
		janitor.Start(context.Background())
		defer janitor.Stop()
	}

	care := services.NewCareService(
		language.NewLinguaDetector(),
		language.NewLLMTranslator(llmClient),
		searchClient,
		aggregator,
		llmClient,
		convStore,
		services.Options{
			PivotLanguage:     cfg.Language.Pivot,
			DefaultLanguage:   cfg.Language.Default,
			SearchRetries:     cfg.Search.MaxRetries,
			DetectTimeout:     cfg.Timeouts.Detect,
			TranslateTimeout:  cfg.Timeouts.Translate,
			SearchTimeout:     cfg.Timeouts.Search,
			SynthesizeTimeout: cfg.Timeouts.Synthesize,
		},
	)

	router := gin.Default()
	router.Use(otelgin.Middleware("care-service"))

	routes.SetupRoutes(router, care, convStore, searchClient.AllowedDomains(), os.Getenv("CARE_API_KEY"))
	log.Println("started up the container")

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	log.Println("Starting the care server on ", addr)
	srv := &http.Server{Addr: addr, Handler: router}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
