// Package telemetry instruments conversations and tool use with OpenTelemetry traces.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName = "workshop-sandbox"
	tracerName  = "github.com/rgould/workshop-sandbox/internal/telemetry"
)

// Config holds the configuration for telemetry
type Config struct {
	Enabled      bool
	OTLPEndpoint string // OTLP/HTTP collector endpoint, e.g. http://localhost:4318
}

// Provider manages the telemetry system
type Provider struct {
	enabled bool
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
}

// NewProvider creates a new telemetry provider. When disabled, all spans are no-ops
func NewProvider(ctx context.Context, config Config, serviceVersion string) (*Provider, error) {
	if !config.Enabled {
		log.Printf("Telemetry disabled")
		return &Provider{
			enabled: false,
			tracer:  noop.NewTracerProvider().Tracer(tracerName),
		}, nil
	}

	exporter, err := newExporter(ctx, config.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Printf("Telemetry enabled, exporting traces to %s", config.OTLPEndpoint)

	return &Provider{
		enabled: true,
		tp:      tp,
		tracer:  tp.Tracer(tracerName),
	}, nil
}

func newExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	return otlptracehttp.New(ctx, opts...)
}

// Shutdown flushes pending spans and shuts down the telemetry provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down telemetry provider: %w", err)
	}
	return nil
}

// StartConversationSpan starts a span covering a whole agent conversation
func (p *Provider) StartConversationSpan(ctx context.Context, conversationID string, sessionID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "conversation",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("session.id", sessionID),
		),
	)
}

// StartTurnSpan starts a span covering a single request/response turn within a conversation
func (p *Provider) StartTurnSpan(ctx context.Context, turnID string, turnIndex int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.Int("turn.index", turnIndex),
		),
	)
}

// TokenUsage represents token usage metrics
type TokenUsage struct {
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
}

// RecordTokenUsage attaches token usage metrics to a turn span
func RecordTokenUsage(span trace.Span, usage TokenUsage) {
	span.SetAttributes(
		attribute.Int64("tokens.input", usage.InputTokens),
		attribute.Int64("tokens.output", usage.OutputTokens),
		attribute.Int64("tokens.cache_read", usage.CacheReadTokens),
		attribute.Int64("tokens.cache_creation", usage.CacheCreationTokens),
	)
}

// ToolUseTelemetry holds telemetry data for a tool use
type ToolUseTelemetry struct {
	ToolName       string
	ToolUseSize    int
	ToolResultSize int
	HasError       bool
}

// RecordToolUse records a tool use as a span event on the current turn span
func RecordToolUse(ctx context.Context, toolUse ToolUseTelemetry) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("tool_use",
		trace.WithAttributes(
			attribute.String("tool.name", toolUse.ToolName),
			attribute.Int("tool.use_size", toolUse.ToolUseSize),
			attribute.Int("tool.result_size", toolUse.ToolResultSize),
			attribute.Bool("tool.has_error", toolUse.HasError),
		),
	)
}

// TransformToolName qualifies a tool name with its command for finer-grained telemetry, e.g.
// str_replace_based_edit_tool[view]
func TransformToolName(toolName string, toolInput map[string]interface{}) string {
	if toolName == "str_replace_based_edit_tool" {
		if command, ok := toolInput["command"].(string); ok && command != "" {
			return fmt.Sprintf("%s[%s]", toolName, command)
		}
	}
	return toolName
}

// NewConversationID generates a new conversation UUID
func NewConversationID() string {
	return uuid.New().String()
}

// NewTurnID generates a new turn UUID
func NewTurnID() string {
	return uuid.New().String()
}
