package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mthakur/oriole/internal/agent"
	"github.com/mthakur/oriole/internal/gateway"
	"github.com/mthakur/oriole/internal/governance"
	"github.com/mthakur/oriole/internal/observability"
	"github.com/mthakur/oriole/internal/relay"
	"github.com/mthakur/oriole/internal/store"
	"github.com/mthakur/oriole/internal/tools"
	"github.com/mthakur/oriole/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.yaml")

	// Initialize LLM (using the default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	var err error
	switch pName {
	case "openai", "openrouter", "gemini":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	model := agent.NewChatModel(llm)

	// Relay pool: direct fetch first, then configured proxies.
	pool := relay.NewPool(relay.NewDirect(20 * time.Second))
	for _, rc := range cfg.Relays {
		pool.Add(relay.NewProxy(rc.Name, rc.Endpoint, rc.Timeout()))
	}

	var renderer tools.Renderer
	if cfg.Render.Enabled {
		renderer = tools.NewChromeRenderer(time.Duration(cfg.Render.TimeoutMS) * time.Millisecond)
	}

	// Initialize Tools
	registry := tools.NewRegistry()
	registry.Register(tools.NewSearchTool(pool, &agent.ModelRefiner{Model: model}))
	registry.Register(tools.NewReadTool(pool, renderer))
	registry.Register(tools.NewInstantTool(pool))

	gov := governance.NewDefaultPolicyEngine()
	// Default safety rules: keep reads off local and non-HTTP targets.
	_ = gov.DenyArguments(`file://`)
	_ = gov.DenyArguments(`https?://(localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1\])`)
	_ = gov.DenyArguments(`https?://(10|192\.168)\.`)

	logger := observability.NewLogger()

	summarizer := agent.NewSummarizer(model, cfg.Agent.SummaryBudget)
	planner := agent.NewPlanner(model, cfg.Agent.ReadsPerTerm)
	planner.Strategy = cfg.Agent.Planner
	executor := agent.NewExecutor(registry, model, summarizer)
	if cfg.Agent.ChunkSize > 0 {
		executor.ChunkSize = cfg.Agent.ChunkSize
	}
	if cfg.Agent.MaxChunks > 0 {
		executor.MaxChunks = cfg.Agent.MaxChunks
	}
	if cfg.Agent.MaxReadTotal > 0 {
		executor.MaxReadTotal = cfg.Agent.MaxReadTotal
	}

	loop := agent.NewLoop(model, registry, planner, executor, gov, logger)
	if cfg.Agent.LoopThreshold > 0 {
		loop.LoopThreshold = cfg.Agent.LoopThreshold
	}

	if cfg.Memory.Path != "" {
		history, err := store.NewHistoryStore(cfg.Memory.Path)
		if err != nil {
			log.Fatal(err)
		}
		defer history.Close()
		loop.Store = history
	}

	// Gateways
	var gateways []gateway.Messenger
	if tgCfg, ok := cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, loop)
		if err != nil {
			log.Fatal(err)
		}
		gateways = append(gateways, tg)
	}
	if dcCfg, ok := cfg.GetGateway("discord"); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, loop)
		if err != nil {
			log.Fatal(err)
		}
		gateways = append(gateways, dc)
	}
	if len(gateways) == 0 {
		log.Fatal("No gateway is enabled in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	for _, gw := range gateways {
		gw := gw
		go func() {
			if err := gw.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop()
			}
		}()
	}

	// Wait for shutdown signal
	<-ctx.Done()

	for _, gw := range gateways {
		_ = gw.Stop()
	}

	// Reset terminal aesthetics
	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
}
