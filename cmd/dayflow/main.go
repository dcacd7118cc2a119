package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dayflow/cmd/dayflow/ui"
	"dayflow/internal/chat"
	"dayflow/internal/config"
	"dayflow/internal/domain"
	"dayflow/internal/logging"
	"dayflow/internal/store"
	"dayflow/internal/transport"
)

var (
	// Global flags
	verbose   bool
	workspace string
	offline   bool
	sessionID string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dayflow",
	Short: "dayflow - assistant chat for your tasks, events, and habits",
	Long: `dayflow is the chat client of the dayflow productivity app.

Messages stream in token by token; when the assistant reports an operation
("I've created a new task: ..."), the client derives a structured action
card with accept/delete/complete buttons that apply exactly once.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "dayflow" && cmd.CalledAs() == "dayflow" {
			return nil
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// classifyCmd runs the CRUD classifier on a piece of text. Debug aid for
// tuning assistant prompts against the card heuristics.
var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Classify assistant prose into a CRUD card tag",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		op := chat.Classify(text)
		if op.IsNone() {
			fmt.Println("none (renders as plain prose)")
			return nil
		}
		switch op.Kind {
		case chat.CRUDBulk:
			fmt.Printf("bulk: action=%s count=%d type=%s\n", op.Action, op.Count, op.ItemType)
		default:
			fmt.Printf("%s: type=%s title=%q\n", strings.ToLower(op.Kind.String()), op.ItemType, op.Title)
		}
		return nil
	},
}

// sessionsCmd lists saved chat sessions.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(workspace)
		if err != nil {
			return err
		}
		sessions, err := store.NewSessionStore(workspace, cfg.Session.Dir)
		if err != nil {
			return err
		}
		defer sessions.Close()
		ids, err := sessions.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("no saved sessions")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func runInteractiveChat() error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if err := logging.Initialize(workspace); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging unavailable: %v\n", err)
	}
	defer logging.CloseAll()

	// Domain collaborators and action-state tracking
	manager := domain.NewManager()
	tracker := chat.NewTracker(manager)

	// Controller first, then transport with the relay as receiver, then bind
	ctrl := chat.NewController(nil)
	events := make(chan struct{}, 1)
	relay := ui.NewRelay(ctrl, events)

	var tr transport.Transport
	if offline || cfg.Transport.Offline {
		tr = transport.NewScript(relay, demoScript(), 30*time.Millisecond)
	} else {
		streamCfg := transport.DefaultStreamConfig(cfg.Transport.BaseURL)
		streamCfg.Model = cfg.Transport.Model
		streamCfg.Timeout = cfg.TransportTimeout()
		tr = transport.NewStreamClient(streamCfg, relay)
	}
	defer tr.Close()
	ctrl.BindTransport(tr)

	// Optional resume
	sessions, err := store.NewSessionStore(workspace, cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessions.Close()
	if sessionID != "" {
		messages, err := sessions.Load(sessionID)
		if err != nil {
			return fmt.Errorf("resume session %s: %w", sessionID, err)
		}
		for _, msg := range messages {
			if err := ctrl.Append(msg); err != nil {
				return err
			}
		}
	}

	// Appearance hot reload: the watcher only refreshes logging state;
	// accent changes apply on next launch.
	if watcher, err := config.NewWatcher(workspace, nil); err == nil {
		if err := watcher.Start(); err == nil {
			defer watcher.Stop()
		}
	}

	model := ui.New(ctrl, tracker, cfg.Appearance, events)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}

	// Persist the transcript on exit
	id := sessionID
	if id == "" {
		id = time.Now().Format("20060102-150405")
	}
	if ctrl.Len() > 0 {
		if err := sessions.Save(id, ctrl.Snapshot()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save session: %v\n", err)
		}
	}
	return nil
}

// demoScript returns canned replies for offline mode, covering prose, a
// classifiable operation report, and a transport failure.
func demoScript() []transport.ScriptStep {
	return []transport.ScriptStep{
		{Tokens: []string{"Hi! ", "I can ", "manage your ", "tasks, events, ", "and habits. ", "Try asking ", "me to ", "schedule something."}},
		{Tokens: []string{"Done! ", "I've created ", "a new task: ", `"Buy groceries"`, " for tomorrow ", "morning."}},
		{Tokens: []string{"I've scheduled ", "your week:\n", "• Mon 9:00 team sync\n", "• Tue 14:00 dentist\n", "• Thu 11:00 design review\n", "• Fri 16:00 retro\n", "All four events ", "are on your calendar."}},
		{Err: transport.Timeout(nil)},
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory (holds .dayflow)")
	rootCmd.Flags().BoolVar(&offline, "offline", false, "use the scripted offline assistant")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "resume a saved session by id")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(sessionsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
