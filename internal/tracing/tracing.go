// Package tracing настраивает OpenTelemetry для запросов к API витрины:
// завершённые спаны записываются в журнал zap.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// LogExporter пишет завершённые спаны в журнал.
type LogExporter struct {
	logger *zap.Logger
}

// NewLogExporter создаёт экспортёр спанов в logger.
func NewLogExporter(logger *zap.Logger) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogExporter{logger: logger}
}

// ExportSpans записывает каждый спан одной строкой журнала.
func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		sc := s.SpanContext()
		fields := []zap.Field{
			zap.String("span", s.Name()),
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}

		if s.Status().Code == codes.Error {
			fields = append(fields, zap.String("error", s.Status().Description))
			e.logger.Warn("span finished", fields...)
			continue
		}
		e.logger.Debug("span finished", fields...)
	}
	return nil
}

// Shutdown ничего не делает: у экспортёра нет собственных ресурсов.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

// NewProvider создаёт TracerProvider, пакетно отправляющий спаны в журнал.
// Вызывающий отвечает за Shutdown.
func NewProvider(logger *zap.Logger, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(NewLogExporter(logger)),
	}, opts...)
	return sdktrace.NewTracerProvider(opts...)
}
