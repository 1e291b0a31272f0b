package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pantryloop/pantryloop-backend/pkg/env"
	"github.com/rs/zerolog"
)

// Event names the JSON-lines telemetry events consumed by the external
// observability pipeline. One object per line, one line per event.
type Event string

const (
	EventProviderQuoteStart   Event = "provider_quote_start"
	EventProviderQuoteSuccess Event = "provider_quote_success"
	EventProviderQuoteError   Event = "provider_quote_error"
	EventProviderFallback     Event = "provider_fallback"
	EventRouterDecision       Event = "router_decision"
	EventRouterFailure        Event = "router_failure"
	EventRouterLatency        Event = "router_latency"
)

// Options configures the telemetry stream.
type Options struct {
	ServiceName string
	Output      io.Writer
}

// Emitter writes structured telemetry events. A nil Emitter drops events,
// so call sites never need guards.
type Emitter struct {
	stream *zerolog.Logger
}

func New(opts Options) *Emitter {
	var output io.Writer = opts.Output
	if output == nil {
		output = os.Stdout
	}
	if env.Get("TELEMETRY_FORMAT", "json") == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	stream := zerolog.
		New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	return &Emitter{stream: &stream}
}

// Emit writes one event line. Fields are flattened onto the event object.
func (e *Emitter) Emit(ctx context.Context, event Event, fields map[string]any) {
	if e == nil || e.stream == nil {
		return
	}
	entry := e.stream.Log().Str("event", string(event))
	for k, v := range fields {
		entry = entry.Interface(k, v)
	}
	entry.Send()
}
