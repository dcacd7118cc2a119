package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// setupWorkspace creates a temp workspace with the given config.yaml content
// and initializes logging against it.
func setupWorkspace(t *testing.T, configContent string) string {
	t.Helper()
	ws := t.TempDir()

	if configContent != "" {
		configDir := filepath.Join(ws, ".dayflow")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			t.Fatalf("Failed to create config dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
	}

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)
	return ws
}

func TestAllCategoriesLog(t *testing.T) {
	ws := setupWorkspace(t, `
logging:
  level: debug
  debug_mode: true
`)

	categories := []Category{
		CategoryBoot,
		CategorySession,
		CategoryTranscript,
		CategoryClassifier,
		CategoryActions,
		CategoryTransport,
		CategoryConfig,
		CategoryPerformance,
	}
	for _, cat := range categories {
		Get(cat).Info("test message for %s", cat)
	}
	CloseAll()

	logsDir := filepath.Join(ws, ".dayflow", "logs")
	for _, cat := range categories {
		pattern := filepath.Join(logsDir, "*_"+string(cat)+".log")
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			t.Errorf("No log file created for category %s", cat)
			continue
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Errorf("Failed to read log for %s: %v", cat, err)
			continue
		}
		if !strings.Contains(string(data), "test message for "+string(cat)) {
			t.Errorf("Log for %s missing test message", cat)
		}
	}
}

func TestProductionModeWritesNothing(t *testing.T) {
	ws := setupWorkspace(t, "")

	if IsDebugMode() {
		t.Error("debug mode should be off without a config file")
	}
	Session("should not be written")
	Transport("should not be written either")

	logsDir := filepath.Join(ws, ".dayflow", "logs")
	if _, err := os.Stat(logsDir); !os.IsNotExist(err) {
		t.Errorf("logs directory should not exist in production mode")
	}
}

func TestCategoryFiltering(t *testing.T) {
	ws := setupWorkspace(t, `
logging:
  level: debug
  debug_mode: true
  categories:
    transcript: true
    transport: false
`)

	if !IsCategoryEnabled(CategoryTranscript) {
		t.Error("transcript should be enabled")
	}
	if IsCategoryEnabled(CategoryTransport) {
		t.Error("transport should be disabled")
	}
	// Unlisted categories default to enabled in debug mode.
	if !IsCategoryEnabled(CategoryActions) {
		t.Error("unlisted category should default to enabled")
	}

	Transcript("kept")
	Transport("dropped")
	CloseAll()

	logsDir := filepath.Join(ws, ".dayflow", "logs")
	matches, _ := filepath.Glob(filepath.Join(logsDir, "*_transport.log"))
	if len(matches) != 0 {
		t.Error("disabled category must not create a log file")
	}
	matches, _ = filepath.Glob(filepath.Join(logsDir, "*_transcript.log"))
	if len(matches) == 0 {
		t.Error("enabled category should create a log file")
	}
}

func TestLevelFiltering(t *testing.T) {
	ws := setupWorkspace(t, `
logging:
  level: warn
  debug_mode: true
`)

	l := Get(CategorySession)
	l.Debug("debug dropped")
	l.Info("info dropped")
	l.Warn("warn kept")
	l.Error("error kept")
	CloseAll()

	matches, _ := filepath.Glob(filepath.Join(ws, ".dayflow", "logs", "*_session.log"))
	if len(matches) == 0 {
		t.Fatal("session log missing")
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Error("messages below warn level leaked into the log")
	}
	if !strings.Contains(content, "warn kept") || !strings.Contains(content, "error kept") {
		t.Error("warn/error messages missing")
	}
}

func TestJSONFormat(t *testing.T) {
	ws := setupWorkspace(t, `
logging:
  level: debug
  debug_mode: true
  json_format: true
`)

	Get(CategoryActions).Info("apply committed")
	CloseAll()

	matches, _ := filepath.Glob(filepath.Join(ws, ".dayflow", "logs", "*_actions.log"))
	if len(matches) == 0 {
		t.Fatal("actions log missing")
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	// Each line carries the stdlib timestamp prefix followed by the JSON body.
	line := strings.TrimSpace(string(data))
	idx := strings.Index(line, "{")
	if idx < 0 {
		t.Fatalf("no JSON body in line: %q", line)
	}
	var entry StructuredLogEntry
	if err := json.Unmarshal([]byte(line[idx:]), &entry); err != nil {
		t.Fatalf("invalid JSON entry: %v", err)
	}
	if entry.Category != "actions" || entry.Level != "info" || entry.Message != "apply committed" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestReloadConfigPicksUpChanges(t *testing.T) {
	ws := setupWorkspace(t, `
logging:
  level: debug
  debug_mode: true
`)

	if !IsDebugMode() {
		t.Fatal("debug mode should start enabled")
	}

	updated := "logging:\n  level: info\n  debug_mode: false\n"
	if err := os.WriteFile(filepath.Join(ws, ".dayflow", "config.yaml"), []byte(updated), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := ReloadConfig(); err != nil {
		t.Fatalf("ReloadConfig failed: %v", err)
	}
	if IsDebugMode() {
		t.Error("debug mode should be off after reload")
	}
}

func TestConcurrentLoggingDuringReload(t *testing.T) {
	ws := setupWorkspace(t, `
logging:
  level: debug
  debug_mode: true
`)

	// Loggers read the level and format while the watcher path rewrites
	// them; both must go through the shared lock.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger := Get(CategoryTranscript)
		for {
			select {
			case <-stop:
				return
			default:
				logger.Debug("tick")
				logger.Info("tick")
			}
		}
	}()

	configPath := filepath.Join(ws, ".dayflow", "config.yaml")
	for i := 0; i < 20; i++ {
		format := "false"
		if i%2 == 0 {
			format = "true"
		}
		content := "logging:\n  level: warn\n  debug_mode: true\n  json_format: " + format + "\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		if err := ReloadConfig(); err != nil {
			t.Fatalf("ReloadConfig failed: %v", err)
		}
	}

	close(stop)
	wg.Wait()
}

func TestTimer(t *testing.T) {
	setupWorkspace(t, `
logging:
  level: debug
  debug_mode: true
`)

	timer := StartTimer(CategoryPerformance, "test operation")
	time.Sleep(10 * time.Millisecond)
	elapsed := timer.Stop()
	if elapsed < 10*time.Millisecond {
		t.Errorf("timer under-reported: %v", elapsed)
	}

	timer = StartTimer(CategoryPerformance, "slow operation")
	time.Sleep(5 * time.Millisecond)
	timer.StopWithThreshold(time.Millisecond)
}
