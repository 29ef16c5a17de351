package fidelity

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fbain/confluence-markdown-sync/internal/fs"
)

func TestScore(t *testing.T) {
	testCases := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "one two three", b: "one two three", want: 1},
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "text", b: "", want: 0},
		{name: "one token changed", a: "a b c d", b: "a b x d", want: 0.75},
		{name: "whitespace ignored", a: "a  b\nc", b: "a b c", want: 1},
		{name: "disjoint", a: "a b", b: "c d", want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Score = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScoreIsSymmetric(t *testing.T) {
	a := "# Title\n\nsome body text with **bold**"
	b := "# Title\n\nsome different body text"
	if Score(a, b) != Score(b, a) {
		t.Fatal("score must be symmetric")
	}
}

func TestRoundTripScoreOnSupportedConstructs(t *testing.T) {
	source := "# Guide\n\nIntro with **bold** and `code`.\n\n- one\n- two\n\n```go\nfunc main() {}\n```\n"

	score, err := RoundTripScore([]byte(source))
	if err != nil {
		t.Fatalf("RoundTripScore: %v", err)
	}
	if score < 0.95 {
		t.Fatalf("supported constructs must score above the default gate, got %v", score)
	}
}

func TestEvaluateAverageGate(t *testing.T) {
	scores := map[string]float64{
		"a.md": 1.0,
		"b.md": 1.0,
		"c.md": 1.0,
		"d.md": 0.90,
	}

	report := Evaluate(scores, Options{Threshold: 0.95})
	if !report.Pass {
		t.Fatalf("average 0.975 must pass a 0.95 gate: %v", report.Failures)
	}
	if math.Abs(report.Average-0.975) > 1e-9 {
		t.Fatalf("average = %v, want 0.975", report.Average)
	}

	floored := Evaluate(scores, Options{Threshold: 0.95, PerFixtureFloor: 0.95})
	if floored.Pass {
		t.Fatal("per-fixture floor must fail the 0.90 fixture")
	}
	if len(floored.Failures) != 1 {
		t.Fatalf("expected one floor failure, got %v", floored.Failures)
	}
}

func TestEvaluateFailsBelowThreshold(t *testing.T) {
	report := Evaluate(map[string]float64{"a.md": 0.80, "b.md": 0.90}, Options{})
	if report.Pass {
		t.Fatal("average 0.85 must fail the default gate")
	}
}

func TestValidateCorpus(t *testing.T) {
	root := t.TempDir()
	fixtures := filepath.Join(root, "fixtures")
	if err := os.MkdirAll(fixtures, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	files := map[string]string{
		"heading.md": "## Title\n",
		"list.md":    "- one\n- two\n",
		"mixed.md":   "# Doc\n\ntext with **bold**\n\n```sh\nmake\n```\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(fixtures, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	workspace, err := fs.NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}

	report, err := ValidateCorpus(workspace, "fixtures", Options{})
	if err != nil {
		t.Fatalf("ValidateCorpus: %v", err)
	}
	if len(report.Fixtures) != 3 {
		t.Fatalf("expected 3 fixtures, got %d", len(report.Fixtures))
	}
	if !report.Pass {
		t.Fatalf("supported corpus must pass the gate: %v", report.Failures)
	}
}

func TestValidateCorpusScoresAgainstExpectedStorage(t *testing.T) {
	root := t.TempDir()
	fixtures := filepath.Join(root, "fixtures")
	if err := os.MkdirAll(fixtures, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	files := map[string]string{
		"heading.md":      "## Title\n",
		"heading.storage": "<h2>Title</h2>",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(fixtures, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	workspace, err := fs.NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}

	report, err := ValidateCorpus(workspace, "fixtures", Options{})
	if err != nil {
		t.Fatalf("ValidateCorpus: %v", err)
	}
	if !report.Pass {
		t.Fatalf("matching storage fixture must pass: %v", report.Failures)
	}

	// A wrong expectation drags the fixture score down.
	if err := os.WriteFile(filepath.Join(fixtures, "heading.storage"), []byte("<h2>Completely different words here</h2>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	report, err = ValidateCorpus(workspace, "fixtures", Options{})
	if err != nil {
		t.Fatalf("ValidateCorpus: %v", err)
	}
	if report.Pass {
		t.Fatal("mismatched storage fixture must fail the gate")
	}
}

func TestValidateCorpusEmptyDirFails(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "fixtures"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	workspace, err := fs.NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}

	if _, err := ValidateCorpus(workspace, "fixtures", Options{}); err == nil {
		t.Fatal("expected an error for an empty corpus")
	}
}
