package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// These run the command tree end to end, so they share the package
// flag variables and must not run in parallel. XDG_CONFIG_HOME is
// pointed at an empty dir to keep the host config file out.

func TestRootNoArgsIsError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	err := newRootCmd().Run(context.Background(), []string{"prosefix"})
	if err == nil {
		t.Fatal("expected error when no text is given")
	}
}

func TestCorrectNoArgsIsError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	err := newRootCmd().Run(context.Background(), []string{"prosefix", "correct"})
	if err == nil {
		t.Fatal("expected error when no text is given")
	}
}

func TestCorrectMissingModelDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := filepath.Join(t.TempDir(), "absent")

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	runErr := newRootCmd().Run(context.Background(),
		[]string{"prosefix", "correct", "--model", dir, "He go to school"})
	os.Stdout = old
	_ = w.Close()
	out, _ := io.ReadAll(r)

	if runErr == nil {
		t.Fatal("expected error for missing model directory")
	}
	if len(out) != 0 {
		t.Fatalf("expected no stdout output on failure, got %q", out)
	}
}
