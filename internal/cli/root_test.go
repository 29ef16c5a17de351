package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sort"
	"testing"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
)

func TestNewRootCommandRegistersCommandsAndGlobalFlags(t *testing.T) {
	root := NewRootCommand(AppContext{
		Stdout: new(bytes.Buffer),
		Stderr: new(bytes.Buffer),
	})

	for _, name := range []string{"json", "base-url", "email", "space", "parent", "log-level", "log-format"} {
		if flag := root.PersistentFlags().Lookup(name); flag == nil {
			t.Fatalf("expected --%s persistent flag", name)
		}
	}

	names := make([]string, 0)
	for _, command := range root.Commands() {
		if command.Hidden {
			continue
		}
		names = append(names, command.Name())
	}
	sort.Strings(names)

	expected := []string{"init", "map", "pull", "push", "status", "validate", "watch"}
	if len(names) != len(expected) {
		t.Fatalf("unexpected command count: got=%d want=%d (%v)", len(names), len(expected), names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("unexpected command names: got=%v want=%v", names, expected)
		}
	}
}

func TestRunInitEmitsJSONEnvelope(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	exitCode := Run(context.Background(), []string{"--json", "--space", "DOCS", "init"}, stdout, stderr)
	if exitCode != int(contracts.ExitCodeSuccess) {
		t.Fatalf("expected success exit code, got %d (stderr: %s)", exitCode, stderr.String())
	}

	var env contracts.CommandEnvelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("expected JSON envelope on stdout, got %v", err)
	}
	if env.Command.Name != "init" {
		t.Fatalf("unexpected command name: %q", env.Command.Name)
	}
	if env.EnvelopeVersion != contracts.JSONEnvelopeVersionV1 {
		t.Fatalf("unexpected envelope version: %q", env.EnvelopeVersion)
	}

	if _, err := os.Stat(".cmt/config.yaml"); err != nil {
		t.Fatalf("init must create the config file: %v", err)
	}
}

func TestRunSecondInitExitsWithConfigCode(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	if code := Run(context.Background(), []string{"init"}, new(bytes.Buffer), new(bytes.Buffer)); code != 0 {
		t.Fatalf("first init failed with %d", code)
	}

	stderr := new(bytes.Buffer)
	code := Run(context.Background(), []string{"init"}, new(bytes.Buffer), stderr)
	if code != int(contracts.ExitCodeConfig) {
		t.Fatalf("expected exit code %d, got %d", contracts.ExitCodeConfig, code)
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected diagnostics on stderr")
	}
}

func TestRunUnknownCommandIsFatal(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	code := Run(context.Background(), []string{"bogus"}, stdout, stderr)
	if code == int(contracts.ExitCodeSuccess) {
		t.Fatalf("expected non-zero exit code for unknown command")
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected diagnostics on stderr")
	}
}
