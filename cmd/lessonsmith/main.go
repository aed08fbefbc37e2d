package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/capability"
	"github.com/lessonsmith/lessonsmith/internal/config"
	"github.com/lessonsmith/lessonsmith/internal/edu"
	"github.com/lessonsmith/lessonsmith/internal/orchestrator"
	"github.com/lessonsmith/lessonsmith/internal/persistence"
	"github.com/lessonsmith/lessonsmith/internal/tui"
)

func main() {
	workflowPath := flag.String("workflow", "", "build a learning module from a request JSON file and exit")
	journalPath := flag.String("journal", "", "override the journal database path")
	flag.Parse()

	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *journalPath != "" {
		cfg.Journal.Path = *journalPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
		os.Exit(1)
	}
	globalPath := filepath.Join(homeDir, ".lessonsmith", "config.json")
	projectPath := filepath.Join(".lessonsmith", "config.json")

	opts := orchestrator.Options{
		Concurrency:     cfg.Scheduler.Concurrency,
		HealthInterval:  time.Duration(cfg.Health.IntervalSeconds) * time.Second,
		HealthThreshold: cfg.Health.WarnThreshold,
		TaskTimeout:     time.Duration(cfg.Scheduler.TaskTimeoutSeconds) * time.Second,
	}

	if cfg.Journal.Path != "" {
		journal, err := persistence.NewSQLiteJournal(ctx, cfg.Journal.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer journal.Close()
		opts.Journal = journal
	}

	engine := orchestrator.New(opts)
	if err := registerAgents(engine, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering agents: %v\n", err)
		os.Exit(1)
	}

	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Shutdown()

	if *workflowPath != "" {
		if err := runHeadless(ctx, engine, *workflowPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			engine.Shutdown()
			os.Exit(1)
		}
		return
	}

	runDashboard(ctx, stop, engine, cfg, globalPath, projectPath)
}

// registerAgents populates the engine from the configured agent catalog.
func registerAgents(engine *orchestrator.Orchestrator, cfg *config.EngineConfig) error {
	for id, ac := range cfg.Agents {
		cap := agent.Capability(ac.Capability)
		exec, ok := executorFor(cap)
		if !ok {
			return fmt.Errorf("agent %q: unknown capability %q", id, ac.Capability)
		}

		register := engine.RegisterAgent
		if ac.Resilient {
			register = engine.RegisterResilientAgent
		}
		if err := register(id, ac.Name, cap, ac.Version, exec); err != nil {
			return err
		}
	}
	return nil
}

// executorFor maps a capability to its built-in executor.
func executorFor(cap agent.Capability) (agent.Executor, bool) {
	switch cap {
	case agent.CapWorkflowAnalysis:
		return capability.NewAnalyzer(), true
	case agent.CapContentGeneration:
		return capability.NewContentGenerator(), true
	case agent.CapVideoGeneration:
		return capability.NewVideoSynthesizer(), true
	case agent.CapAccessibility:
		return capability.NewAccessibilityEnhancer(), true
	case agent.CapRouting:
		return capability.NewRequestRouter(), true
	case agent.CapQualityAssurance:
		return capability.NewQualityChecker(), true
	default:
		return nil, false
	}
}

// loadRequest reads a build request from a JSON file.
func loadRequest(path string) (edu.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return edu.Request{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var req edu.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return edu.Request{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if req.Workflow.Name == "" {
		return edu.Request{}, fmt.Errorf("%s: workflow name is required", path)
	}
	return req, nil
}

// runHeadless builds one module and prints it as JSON.
func runHeadless(ctx context.Context, engine *orchestrator.Orchestrator, path string) error {
	req, err := loadRequest(path)
	if err != nil {
		return err
	}

	module, err := engine.BuildModule(ctx, req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(module, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding module: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// runDashboard runs the TUI until the user quits or a signal arrives.
func runDashboard(ctx context.Context, stop context.CancelFunc, engine *orchestrator.Orchestrator, cfg *config.EngineConfig, globalPath, projectPath string) {
	model := tui.New(engine, cfg, globalPath, projectPath)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		// Signal received; restore default handling so a second Ctrl+C force-exits
		stop()
		log.Println("Shutdown signal received, cleaning up...")
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}
