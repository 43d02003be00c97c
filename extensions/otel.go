package extensions

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pumped "github.com/flowcore-dev/pumped"
)

const scopeName = "github.com/flowcore-dev/pumped"

// TracingExtension records an OpenTelemetry span around every resolve,
// release, and flow execution. Spans go to a no-op backend until a real
// TracerProvider is installed with otel.SetTracerProvider.
type TracingExtension struct {
	pumped.BaseExtension
	tracer trace.Tracer
}

// NewTracingExtension creates a tracing extension backed by the global
// OTEL TracerProvider.
func NewTracingExtension() *TracingExtension {
	return &TracingExtension{
		BaseExtension: pumped.NewBaseExtension("tracing"),
		tracer:        otel.Tracer(scopeName),
	}
}

func (e *TracingExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
	spanCtx, span := e.tracer.Start(ctx, "pumped."+string(op.Kind),
		trace.WithAttributes(attribute.String("pumped.executor", executorLabel(op.Executor))))
	defer span.End()

	result, err := next()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	_ = spanCtx
	return result, err
}

func (e *TracingExtension) OnFlowStart(execCtx *pumped.ExecutionCtx, flow pumped.AnyFlow) error {
	name := "anonymous"
	if n, ok := pumped.FlowName().ReadOK(flow); ok {
		name = n
	}
	spanCtx, span := e.tracer.Start(execCtx.Context(), "pumped.flow."+name,
		trace.WithAttributes(
			attribute.String("pumped.flow", name),
			attribute.Int("pumped.depth", execCtx.Depth()),
		))
	execCtx.SetTag(flowSpanKey{}, span)
	_ = spanCtx
	return nil
}

func (e *TracingExtension) OnFlowEnd(execCtx *pumped.ExecutionCtx, result any, err error) error {
	span, ok := execCtx.GetTag(flowSpanKey{})
	if !ok {
		return nil
	}
	s, ok := span.(trace.Span)
	if !ok {
		return nil
	}
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
	} else {
		s.SetStatus(codes.Ok, "")
	}
	s.End()
	return nil
}

func (e *TracingExtension) OnFlowPanic(execCtx *pumped.ExecutionCtx, recovered any, stack []byte) error {
	span, ok := execCtx.GetTag(flowSpanKey{})
	if !ok {
		return nil
	}
	s, ok := span.(trace.Span)
	if !ok {
		return nil
	}
	s.AddEvent("panic", trace.WithAttributes(
		attribute.String("pumped.panic", fmt.Sprintf("%v", recovered)),
	))
	return nil
}

// flowSpanKey is a private tag key used to stash the in-flight flow span on
// the ExecutionCtx between OnFlowStart and OnFlowEnd/OnFlowPanic.
type flowSpanKey struct{}

func executorLabel(exec pumped.AnyExecutor) string {
	if exec == nil {
		return "unknown"
	}
	if name, ok := pumped.ExecutorName().ReadOK(exec); ok {
		return name
	}
	return fmt.Sprintf("executor_%p", exec)
}
