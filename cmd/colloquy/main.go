// Command colloquy runs a budgeted round-table conversation between LLM
// participants and writes the transcript to disk.
//
// Usage:
//
//	colloquy -config colloquy.yaml -topic "Are numbers real?" -token-limit 20000
//
// API keys come from the config file or from OPENAI_API_KEY,
// ANTHROPIC_API_KEY, and GOOGLE_API_KEY; a .env file in the working
// directory is honored. Every backend with a key joins the conversation,
// and at least two are required.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/BaSui01/colloquy"
	"github.com/BaSui01/colloquy/budget"
	"github.com/BaSui01/colloquy/config"
	"github.com/BaSui01/colloquy/conversation"
	"github.com/BaSui01/colloquy/providers/anthropic"
	"github.com/BaSui01/colloquy/providers/gemini"
	"github.com/BaSui01/colloquy/providers/openai"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "colloquy: %v\n", err)
	}
	os.Exit(code)
}

// run keeps main a thin wrapper so deferred cleanup always executes and
// the exit code stays in one place.
func run() (int, error) {
	var (
		configPath = flag.String("config", "colloquy.yaml", "path to the YAML config file")
		topic      = flag.String("topic", "", "conversation topic (overrides config)")
		tokenLimit = flag.Int("token-limit", 0, "session token limit (overrides config)")
		session    = flag.String("session", "", "session name (overrides config)")
	)
	flag.Parse()

	// A missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return exitConfig, err
	}
	if *topic != "" {
		cfg.Session.Topic = *topic
	}
	if *tokenLimit > 0 {
		cfg.Budget.TokenLimit = *tokenLimit
	}
	if *session != "" {
		cfg.Session.Name = *session
	}

	logger, err := colloquy.NewLogger(cfg.Log)
	if err != nil {
		return exitConfig, fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	participants := assembleParticipants(cfg, logger)
	if len(participants) < 2 {
		return exitConfig, fmt.Errorf("need at least two configured backends, have %d; set API keys", len(participants))
	}

	orch, err := colloquy.NewSession(cfg, participants, logger)
	if err != nil {
		return exitRuntime, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Cyan.Printf("Topic: %s\n", cfg.Session.Topic)
	color.Cyan.Printf("Token limit: %d\n\n", cfg.Budget.TokenLimit)

	var last budget.Snapshot
	orch.WithHooks(orchestratorHooks(&last))

	artifacts, err := orch.Run(ctx)
	if err != nil {
		return exitRuntime, err
	}

	printSummary(last)
	color.Green.Printf("\nTranscript: %s\n", artifacts.TextPath)
	color.Green.Printf("Snapshot:   %s\n", artifacts.JSONPath)
	return exitOK, nil
}

// assembleParticipants builds one provider per configured API key.
func assembleParticipants(cfg *config.Config, logger *zap.Logger) []colloquy.Generator {
	var out []colloquy.Generator
	if cfg.Providers.OpenAI.APIKey != "" {
		out = append(out, openai.New(cfg.Providers.OpenAI, logger))
	}
	if cfg.Providers.Anthropic.APIKey != "" {
		out = append(out, anthropic.New(cfg.Providers.Anthropic, logger))
	}
	if cfg.Providers.Gemini.APIKey != "" {
		out = append(out, gemini.New(cfg.Providers.Gemini, logger))
	}
	return out
}

func orchestratorHooks(last *budget.Snapshot) colloquy.Hooks {
	speakerColors := map[string]color.Color{
		openai.ParticipantName:    color.Green,
		anthropic.ParticipantName: color.Yellow,
		gemini.ParticipantName:    color.Magenta,
	}
	return colloquy.Hooks{
		OnUtterance: func(u conversation.Utterance, snap budget.Snapshot) {
			*last = snap
			c, ok := speakerColors[u.Speaker]
			if !ok {
				c = color.White
			}
			c.Printf("%s:\n", u.Speaker)
			fmt.Printf("%s\n", u.Content)
			color.Gray.Printf("(%d tokens, $%.4f, %.1f%% of budget)\n\n",
				u.Tokens, u.Cost, snap.UsagePercent)
		},
		OnAdvisory: func(snap budget.Snapshot) {
			color.Red.Printf("!! budget warning: %d of %d tokens used (%.1f%%)\n\n",
				snap.TotalTokens, snap.TokenLimit, snap.UsagePercent)
		},
	}
}

func printSummary(snap budget.Snapshot) {
	names := make([]string, 0, len(snap.ByParticipant))
	for name := range snap.ByParticipant {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Participant", "Input", "Output", "Total", "Cost"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, name := range names {
		u := snap.ByParticipant[name]
		table.Append([]string{
			name,
			fmt.Sprintf("%d", u.InputTokens),
			fmt.Sprintf("%d", u.OutputTokens),
			fmt.Sprintf("%d", u.TotalTokens),
			fmt.Sprintf("$%.4f", u.Cost),
		})
	}
	table.SetFooter([]string{"Total", "", "",
		fmt.Sprintf("%d", snap.TotalTokens),
		fmt.Sprintf("$%.4f", snap.TotalCost)})
	table.Render()
}
