// Package colloquy provides a top-level convenience entry point for
// assembling a budget-bounded multi-participant conversation.
//
// Usage:
//
//	import "github.com/BaSui01/colloquy"
//
//	cfg := config.MustLoad("colloquy.yaml")
//	logger, _ := colloquy.NewLogger(cfg.Log)
//	orch, err := colloquy.NewSession(cfg, participants, logger)
//	artifacts, err := orch.Run(ctx)
//
// This is a thin wrapper that wires the tokenizer, ledger, context
// builder, scheduler, and recorder together from one resolved config.
package colloquy

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/colloquy/budget"
	"github.com/BaSui01/colloquy/config"
	"github.com/BaSui01/colloquy/conversation"
	"github.com/BaSui01/colloquy/orchestrator"
	"github.com/BaSui01/colloquy/recorder"
	"github.com/BaSui01/colloquy/tokenizer"
)

// Generator is re-exported so callers never need to import orchestrator/
// just to declare a participant.
type Generator = orchestrator.Generator

// Hooks is re-exported for the same reason.
type Hooks = orchestrator.Hooks

// NewSession assembles a ready-to-run orchestrator from a resolved
// configuration and at least two participants. The recorder opens its
// transcript file here; a failed open fails the whole assembly.
func NewSession(cfg *config.Config, participants []Generator, logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tok := tokenizer.New(cfg.Budget.Encoding)
	ledger := budget.NewLedger(budget.Config{
		TokenLimit:       cfg.Budget.TokenLimit,
		WarningThreshold: cfg.Budget.WarningThreshold,
		Rates:            cfg.Budget.Rates,
	}, tok, logger)

	names := make([]string, 0, len(participants))
	for _, p := range participants {
		names = append(names, p.Name())
	}
	builder := conversation.NewContextBuilder(cfg.Session.WindowSize, names)

	rec, err := recorder.New(cfg.Session.OutputDir, cfg.Session.Name, logger)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(orchestrator.Config{
		Topic:             cfg.Session.Topic,
		MaxResponseTokens: cfg.Session.MaxResponseTokens,
		InterTurnDelay:    cfg.Session.InterTurnDelay,
		FailureBackoff:    cfg.Session.FailureBackoff,
	}, participants, ledger, builder, conversation.NewScheduler(), rec, logger)
	return orch, nil
}

// NewLogger builds a zap logger from the log section of the config.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
