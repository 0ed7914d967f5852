package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRelevant(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, IgnoreFile, "archive/\n*.tmp.md\n")
	m := NewIgnoreMatcher(root)

	tests := []struct {
		rel  string
		want bool
	}{
		{"Page.md", true},
		{"sub/dir/Page.md", true},
		{".copilot/state.yaml", true},
		{".copilot/index.db", false},
		{"notes.txt", false},
		{"archive/Old.md", false},
		{"draft.tmp.md", false},
		{".obsidian/workspace.md", false},
		{"node_modules/pkg/README.md", false},
		{".hidden/x.md", false},
	}
	for _, tt := range tests {
		if got := relevant(tt.rel, m); got != tt.want {
			t.Errorf("relevant(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestWatcher_Unregister(t *testing.T) {
	v := setupVault(t)
	w := NewWatcher(v)

	var got []string
	stop := w.OnRawChangeSignal(func(key string) { got = append(got, "a:"+key) })
	w.OnRawChangeSignal(func(key string) { got = append(got, "b:"+key) })

	w.emit("x.md")
	stop()
	stop()
	w.emit("y.md")

	want := []string{"a:x.md", "b:x.md", "b:y.md"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWatcher_Run(t *testing.T) {
	v := setupVault(t)
	w := NewWatcher(v)

	signals := make(chan string, 16)
	w.OnRawChangeSignal(func(key string) {
		select {
		case signals <- key:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Writes are repeated because the watcher may not be registered yet.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var got string
loop:
	for {
		select {
		case key := <-signals:
			if key == "Weekly.md" {
				got = key
				break loop
			}
		case <-tick.C:
			_ = os.WriteFile(filepath.Join(v.Root(), "archive", "Old.md"), []byte("- ignored\n"), 0o644)
			_ = os.WriteFile(filepath.Join(v.Root(), "Weekly.md"), []byte("- edited\n"), 0o644)
		case <-deadline:
			t.Fatal("no change signal within 5s")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if got != "Weekly.md" {
		t.Errorf("key = %q", got)
	}
	for len(signals) > 0 {
		if key := <-signals; key == "archive/Old.md" {
			t.Error("ignored directory produced a signal")
		}
	}
}
