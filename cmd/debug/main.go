package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/config"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/runner"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/secrets"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/types"
	"github.com/joho/godotenv"
)

var (
	dataPath   string
	policyPath string
	callAPI    bool
)

func init() {
	flag.StringVar(&dataPath, "data", "", "path to JSON file with test event data")
	flag.StringVar(&policyPath, "policy", "", "override path to Rego confirmation policy file")
	flag.BoolVar(&callAPI, "call", false, "send requests to pinpoint instead of a dry run")
	flag.Parse()
}

func NewDebugConfig() (*config.Config, error) {
	envpath := filepath.Join("..", "..", ".env")
	if _, err := os.Stat(envpath); err == nil {
		_ = godotenv.Load(envpath)
	}

	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	cfg.DebugMode = true

	if callAPI {
		cfg.AppCallEnabled = true
	}

	if cfg.AppConfirmPolicyPath == "" {
		cfg.AppConfirmPolicyPath = filepath.Join("..", "..", "fixtures", "confirm-policy.rego")
	}
	if policyPath != "" {
		cfg.AppConfirmPolicyPath = policyPath
		cfg.AppConfirmMode = config.ConfirmModePolicy
	}

	if cfg.AppSecretsKmsKeyId == "" {
		cfg.AppSecretsKmsKeyId = secrets.MockedKeyID
	}

	if cfg.DebugDataPath == "" {
		cfg.DebugDataPath = filepath.Join("..", "..", "fixtures", "debug-data.json")
	}
	if dataPath != "" {
		cfg.DebugDataPath = dataPath
	}

	return cfg, cfg.Validate()
}

func main() {
	cfg, err := NewDebugConfig()
	if err != nil {
		log.Fatal("failed to debug load config", "error", err)
	}
	log.SetLevel(log.Level(cfg.AppLogLevel))
	slog.SetDefault(slog.New(log.Default()))

	ctx := context.Background()

	r, err := runner.NewRunner(ctx, cfg)
	if err != nil {
		log.Fatal("failed to init runner", "error", err)
	}

	data, err := os.ReadFile(cfg.DebugDataPath)
	if err != nil {
		log.Fatal("failed to read data file", "path", cfg.DebugDataPath, "error", err)
	}

	events := []types.InvocationEvent{}
	if err := json.Unmarshal(data, &events); err != nil {
		log.Fatal("failed to parse event file", "error", err)
	}

	emitter := &dispatch.JSONEmitter{Writer: os.Stdout, Indent: true}
	failed := 0
	for i, e := range events {
		out := r.Run(ctx, e)
		if err := emitter.Emit(ctx, out); err != nil {
			log.Error("failed to write outcome", "error", err)
		}
		if out.Status == dispatch.Failed {
			failed++
			log.Error("debug iteration failed", "index", i, "operation", e.Operation, "error", out.Err)
			continue
		}
		log.Info("debug iteration passed", "index", i, "operation", e.Operation, "status", out.Status)
	}

	if failed > 0 {
		log.Error("debug run failed", "failed", failed, "total", len(events))
		os.Exit(1)
	}
	log.Info("debug run passed", "total", len(events))
}
