package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/alarm"
	"github.com/ab0utbla-k/lambda-errors-alarm/internal/channel"
	"github.com/ab0utbla-k/lambda-errors-alarm/internal/config"
	"github.com/ab0utbla-k/lambda-errors-alarm/internal/handler"
	"github.com/ab0utbla-k/lambda-errors-alarm/internal/telemetry"
)

const serviceNamespace = "lambda-errors-alarm"

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).
			Error("cannot load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if len(cfg.RejectedActions) > 0 {
		logger.Warn("ignoring invalid alarm actions", slog.Any("actions", cfg.RejectedActions))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("cannot load aws config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.TracingEnabled {
		otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	}

	if cfg.VerifyChannels {
		verifier := channel.NewVerifier(sns.NewFromConfig(awsCfg))
		if err := verifier.Verify(ctx, cfg.Channels()...); err != nil {
			logger.Warn("notification channel check failed", slog.String("error", err.Error()))
		}
	}

	reconciler := alarm.NewReconciler(
		alarm.NewClient(cloudwatch.NewFromConfig(awsCfg)),
		alarm.Actions{Alarm: cfg.AlarmActions, OK: cfg.OKActions},
	)
	h := handler.NewEventHandler(reconciler, cfg.CallTimeout, logger)

	if !cfg.TracingEnabled {
		logger.Debug("started alarm reconciler", slog.Float64("initDurationSec", time.Since(startTime).Seconds()))
		lambda.Start(h.HandleRequest)
		return
	}

	serviceName := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	if serviceName == "" {
		serviceName = serviceNamespace
	}

	tp, err := telemetry.NewTracerProvider(
		ctx,
		serviceName,
		semconv.ServiceNamespaceKey.String(serviceNamespace),
		attribute.Int("reconciler.alarm_actions", len(cfg.AlarmActions)),
		attribute.Int("reconciler.ok_actions", len(cfg.OKActions)),
	)
	if err != nil {
		logger.Error("cannot initialize tracer provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("cannot shutdown tracer provider", slog.String("error", err.Error()))
		}
	}()

	logger.Debug(
		"started alarm reconciler",
		slog.String("region", cfg.AWSRegion),
		slog.Int("alarmActions", len(cfg.AlarmActions)),
		slog.Int("okActions", len(cfg.OKActions)),
		slog.Float64("initDurationSec", time.Since(startTime).Seconds()),
	)

	lambda.Start(
		otellambda.InstrumentHandler(
			h.HandleRequest,
			otellambda.WithTracerProvider(tp),
			otellambda.WithFlusher(tp)),
	)
}
