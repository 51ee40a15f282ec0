package config

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	if got, err := ExpandHome("/var/lib/inferd"); err != nil || got != "/var/lib/inferd" {
		t.Fatalf("absolute path changed: %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("empty path changed: %q err=%v", got, err)
	}
	if got, err := ExpandHome("~"); err != nil || got != home {
		t.Fatalf("bare tilde: %q err=%v", got, err)
	}
	got, err := ExpandHome("~/.inferd/models")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if want := filepath.Join(home, ".inferd", "models"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
