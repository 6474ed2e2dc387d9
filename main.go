package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/charmbracelet/log"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/config"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/runner"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/types"
)

var (
	r       *runner.Runner
	emitter = &dispatch.LogEmitter{}
)

// Handler runs one invocation event. Failures are reported in the returned
// envelope rather than as a Lambda error so the runtime never retries a
// mutating call.
func Handler(ctx context.Context, event types.InvocationEvent) (dispatch.OutcomeEnvelope, error) {
	if r.Config.DebugMode {
		evtJson, err := json.Marshal(r.Redact(event))
		if err != nil {
			slog.ErrorContext(ctx, "issue marshalling event", "error", err)
		}
		slog.DebugContext(ctx, "received event", "event", string(evtJson))
	}

	out := r.Run(ctx, event)
	_ = emitter.Emit(ctx, out)

	return dispatch.Envelope(out), nil
}

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.Level(cfg.AppLogLevel),
		ReportTimestamp: true,
		Formatter:       log.JSONFormatter,
	})
	slog.SetDefault(slog.New(logger))

	r, err = runner.NewRunner(context.Background(), cfg)
	if err != nil {
		log.Fatal("failed to init runner", "error", err)
	}

	lambda.Start(Handler)
}
