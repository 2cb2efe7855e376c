package rules

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gridwork/hubcap/pkg/compat"
)

type ruleSink struct {
	mu    sync.Mutex
	rules []compat.Rule
	loads int
}

func (s *ruleSink) apply(rules []compat.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
	s.loads++
}

func (s *ruleSink) snapshot() ([]compat.Rule, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules, s.loads
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func writeRuleFile(t *testing.T, path string, ids ...string) {
	t.Helper()
	content := "version: v1\nrules:\n"
	for _, id := range ids {
		content += "  - id: " + id + "\n    name: power_compatibility\n    source_field: power_consumption\n    target_field: power_output\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_AppliesInitialRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubcap-rules.yaml")
	writeRuleFile(t, path, "power-draw")

	sink := &ruleSink{}
	w, err := NewWatcher(path, sink.apply, quietLogger())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	rules, loads := sink.snapshot()
	if loads != 1 || len(rules) != 1 || rules[0].ID != "power-draw" {
		t.Errorf("initial load produced %d loads, rules %+v", loads, rules)
	}
}

func TestWatcher_FailsOnBrokenFileAtStartup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubcap-rules.yaml")
	if err := os.WriteFile(path, []byte("rules: {not valid"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewWatcher(path, func([]compat.Rule) {}, quietLogger()); err == nil {
		t.Error("a broken rule file should fail watcher construction")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubcap-rules.yaml")
	writeRuleFile(t, path, "power-draw")

	sink := &ruleSink{}
	w, err := NewWatcher(path, sink.apply, quietLogger())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	writeRuleFile(t, path, "power-draw", "power-secondary")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rules, _ := sink.snapshot(); len(rules) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	rules, loads := sink.snapshot()
	t.Errorf("reload never applied: %d loads, rules %+v", loads, rules)
}

func TestWatcher_KeepsPreviousRulesOnBadEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubcap-rules.yaml")
	writeRuleFile(t, path, "power-draw")

	sink := &ruleSink{}
	w, err := NewWatcher(path, sink.apply, quietLogger())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("rules: {not valid"), 0644); err != nil {
		t.Fatal(err)
	}

	// Give the watcher a moment to see the event, then verify the original
	// rules are still in effect.
	time.Sleep(200 * time.Millisecond)
	rules, _ := sink.snapshot()
	if len(rules) != 1 || rules[0].ID != "power-draw" {
		t.Errorf("bad edit should keep previous rules, got %+v", rules)
	}
}
