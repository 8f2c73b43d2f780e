package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"warvox/internal/assembler"
	"warvox/internal/classify"
	"warvox/internal/config"
	"warvox/internal/dispatch"
	"warvox/internal/logging"
	"warvox/internal/perception"
	"warvox/internal/pipeline"
	"warvox/internal/resolver"
	"warvox/internal/state"
	"warvox/internal/telemetry"
	"warvox/internal/trigger"
	"warvox/internal/types"
	"warvox/internal/validation"
)

var (
	// Global flags
	cfgPath   string
	verbose   bool
	dbPath    string
	sessionID string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "warvox",
	Short: "warvox - voice companion core for tabletop wargames",
	Long: `warvox tracks a tabletop wargame from table talk. Speech fragments
flow through a trigger evaluator; each trigger runs one analysis pass
that classifies intent, assembles game context, and dispatches state
operations through an LLM tool-calling turn.

Run 'warvox run' to start a session reading fragments from stdin.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if sessionID != "" {
			cfg.SessionID = sessionID
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live session, reading speech fragments from stdin",
	Long: `Reads one finalized speech fragment per line from stdin and feeds it
through the pipeline. Analysis results print to stdout as they settle.
The session starts from the built-in demo roster; pass --db to mirror
the timeline to sqlite for later inspection.`,
	RunE: runSession,
}

var replayCmd = &cobra.Command{
	Use:   "replay [transcript-file]",
	Short: "Replay a recorded transcript through the full pipeline",
	Long: `Feeds a transcript file through trigger, classification, and dispatch
against a fresh session. One fragment per line; a leading "@seconds "
sets the fragment's offset from session start, driving the trigger's
silence and accumulation checks:

  @0 terminators move up
  @12.5 they took six wounds from the boyz`,
	Args: cobra.ExactArgs(1),
	RunE: replayTranscript,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline [session-id]",
	Short: "Print a session's timeline from the sqlite mirror",
	Args:  cobra.ExactArgs(1),
	RunE:  printTimeline,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Dump the seeded session state as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		session := state.NewDemoSession(resolveSessionID())
		out, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite timeline mirror path")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id (default: generated)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(stateCmd)
}

func newLLMClient(llm config.LLM) (types.LLMClient, error) {
	return perception.NewClient(llm.Provider, perception.ClientOptions{
		APIKey:      llm.APIKey,
		BaseURL:     llm.BaseURL,
		Model:       llm.Model,
		Timeout:     llm.Timeout,
		MaxTokens:   llm.MaxTokens,
		Temperature: llm.Temperature,
	})
}

func resolveSessionID() string {
	if cfg.SessionID != "" {
		return cfg.SessionID
	}
	return "session-" + strings.ToLower(ulid.Make().String())
}

// newSession wires a store and pipeline for one session. The returned
// cleanup closes the pipeline and the optional sqlite mirror.
func newSession(sid string) (*pipeline.Pipeline, func(), error) {
	store := state.NewMemoryStore(logger)
	store.PutSession(state.NewDemoSession(sid))

	var mirror *state.TimelineMirror
	if cfg.DBPath != "" {
		var err error
		mirror, err = state.OpenTimelineMirror(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		store.AttachMirror(mirror)
	}

	client, err := newLLMClient(cfg.LLM)
	if err != nil {
		if mirror != nil {
			mirror.Close()
		}
		return nil, nil, err
	}

	// The classifier runs on its own, typically cheaper model when one
	// is configured; the default shares the dispatch client.
	classifierClient := client
	if classifierLLM := cfg.LLM.ClassifierLLM(); classifierLLM != cfg.LLM {
		classifierClient, err = newLLMClient(classifierLLM)
		if err != nil {
			if mirror != nil {
				mirror.Close()
			}
			return nil, nil, err
		}
	}

	p := pipeline.New(pipeline.Options{
		SessionID:  sid,
		Trigger:    trigger.New(cfg.Trigger, logger),
		Classifier: classify.New(classifierClient, cfg.LLM.Timeout, logger),
		Assembler:  assembler.New(store),
		Dispatcher: dispatch.New(client, store, resolver.New(cfg.Aliases, logger), validation.NewEngine(cfg.Validation), logger),
		Store:      store,
		Logger:     logger,
		OnResult:   printAnalysis,
	})
	cleanup := func() {
		p.Close()
		if mirror != nil {
			mirror.Close()
		}
	}
	return p, cleanup, nil
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "warvox")
	if err != nil {
		logger.Warn("telemetry setup failed", zap.Error(err))
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	sid := resolveSessionID()
	p, cleanup, err := newSession(sid)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("session %s started; type speech fragments, ctrl-d to end\n", sid)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nsession ended")
			return nil
		case line, ok := <-lines:
			if !ok {
				p.Wait()
				fmt.Println("session ended")
				return nil
			}
			decision := p.Ingest(ctx, line)
			if decision.Triggered {
				fmt.Printf("  [trigger: %s %.2f, %d fragments]\n",
					decision.Kind, decision.Confidence, len(decision.Fragments))
			}
		}
	}
}

func replayTranscript(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	sid := resolveSessionID()
	p, cleanup, err := newSession(sid)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("replaying %s into session %s\n", args[0], sid)

	start := time.Now()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		text, offset := parseTranscriptLine(scanner.Text())
		if text == "" {
			continue
		}
		decision := p.IngestFragment(cmd.Context(), types.Fragment{
			Text:      text,
			Timestamp: start.Add(offset),
		})
		if decision.Triggered {
			fmt.Printf("  [trigger: %s %.2f, %d fragments]\n",
				decision.Kind, decision.Confidence, len(decision.Fragments))
			// Let each analysis settle so the replay is deterministic.
			p.Wait()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	p.Wait()
	fmt.Println("replay complete")
	return nil
}

// parseTranscriptLine splits an optional "@seconds" prefix from the
// fragment text.
func parseTranscriptLine(line string) (string, time.Duration) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "@") {
		return line, 0
	}
	prefix, rest, ok := strings.Cut(line[1:], " ")
	if !ok {
		return line, 0
	}
	seconds, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return line, 0
	}
	return strings.TrimSpace(rest), time.Duration(seconds * float64(time.Second))
}

func printAnalysis(a pipeline.Analysis) {
	switch {
	case a.Superseded:
		return
	case a.Err != nil:
		fmt.Printf("  analysis failed: %v\n", a.Err)
		return
	case a.Skipped:
		fmt.Println("  (not game related)")
		return
	}
	if a.Batch == nil {
		return
	}
	if len(a.Batch.Results) == 0 && a.Batch.Text != "" {
		fmt.Printf("  %s\n", a.Batch.Text)
	}
	for _, res := range a.Batch.Results {
		marker := "ok"
		if !res.Success {
			marker = "FAILED"
		}
		fmt.Printf("  [%s] %s: %s\n", marker, res.Kind, res.Message)
		if v := res.Validation; v != nil && v.Severity != validation.SeverityValid {
			fmt.Printf("       %s: %s", v.Severity, v.Message)
			if v.Suggestion != "" {
				fmt.Printf(" (%s)", v.Suggestion)
			}
			fmt.Println()
		}
	}
}

func printTimeline(cmd *cobra.Command, args []string) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("timeline requires --db")
	}
	mirror, err := state.OpenTimelineMirror(cfg.DBPath)
	if err != nil {
		return err
	}
	defer mirror.Close()

	records, err := mirror.Records(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no records for session", args[0])
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %-22s %s\n", rec.CreatedAt.Format("15:04:05"), rec.Kind, rec.Summary)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
