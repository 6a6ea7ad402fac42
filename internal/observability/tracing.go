package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a named tracer from the global provider. Without a configured
// provider spans are no-ops.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/vicmordi/AIHelpdesk/" + name)
}
