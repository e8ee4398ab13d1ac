package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitProvider installs a process-global meter and tracer provider tagged
// with serviceName, so every component's otel.Meter/otel.Tracer calls
// produce real (if unexported, in the absence of a configured OTLP
// collector) instruments rather than the no-op default. Grounded on the
// teacher's internal/observability.InitOTel, narrowed to resource-tagged
// SDK providers without the OTLP exporter wiring (spec.md's Non-goals
// exclude deployment/collector configuration; go.mod carries the SDK,
// not an exporter).
func InitProvider(serviceName string) (shutdown func(context.Context) error, err error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return err
		}
		return tp.Shutdown(ctx)
	}, nil
}
