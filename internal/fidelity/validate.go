package fidelity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
)

type Options struct {
	// Threshold is the minimum corpus-average score. Zero means the
	// contract default.
	Threshold float64
	// PerFixtureFloor optionally fails the gate when any single fixture
	// scores below it. Zero disables the floor.
	PerFixtureFloor float64
}

type FixtureResult struct {
	Name  string
	Score float64
	Err   error
}

type Report struct {
	Fixtures        []FixtureResult
	Average         float64
	Threshold       float64
	PerFixtureFloor float64
	Pass            bool
	Failures        []string
}

// ValidateCorpus round-trips every Markdown fixture under dir and gates on
// the corpus-average score. A fixture that fails to convert scores zero; it
// drags the average down instead of aborting the run.
func ValidateCorpus(workspace *fs.SafeFS, dir string, options Options) (Report, error) {
	resolved, err := workspace.Resolve(dir)
	if err != nil {
		return Report{}, err
	}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return Report{}, err
	}

	names := make([]string, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".md") {
			continue
		}
		names = append(names, dirEntry.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return Report{}, fmt.Errorf("no markdown fixtures under %s", dir)
	}

	scores := make(map[string]float64, len(names))
	errs := make(map[string]error, len(names))
	for _, name := range names {
		source, err := workspace.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return Report{}, err
		}

		score, err := RoundTripScore(source)
		if err != nil {
			errs[name] = err
			scores[name] = 0
			continue
		}

		// A companion .storage fixture pins the expected render; the
		// fixture scores whichever comparison is worse.
		expectedPath := filepath.Join(dir, strings.TrimSuffix(name, ".md")+".storage")
		if expected, readErr := workspace.ReadFile(expectedPath); readErr == nil {
			storageScore, err := StorageScore(source, string(expected))
			if err != nil {
				errs[name] = err
				scores[name] = 0
				continue
			}
			if storageScore < score {
				score = storageScore
			}
		}

		scores[name] = score
	}

	report := Evaluate(scores, options)
	for i := range report.Fixtures {
		report.Fixtures[i].Err = errs[report.Fixtures[i].Name]
	}
	return report, nil
}

// Evaluate applies the gate to a set of per-fixture scores.
func Evaluate(scores map[string]float64, options Options) Report {
	threshold := options.Threshold
	if threshold <= 0 {
		threshold = contracts.DefaultFidelityThreshold
	}

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{
		Threshold:       threshold,
		PerFixtureFloor: options.PerFixtureFloor,
	}

	total := 0.0
	for _, name := range names {
		score := scores[name]
		total += score
		report.Fixtures = append(report.Fixtures, FixtureResult{Name: name, Score: score})

		if options.PerFixtureFloor > 0 && score < options.PerFixtureFloor {
			report.Failures = append(report.Failures,
				fmt.Sprintf("%s scored %.4f, below the per-fixture floor %.4f", name, score, options.PerFixtureFloor))
		}
	}

	if len(names) > 0 {
		report.Average = total / float64(len(names))
	}
	if report.Average < threshold {
		report.Failures = append(report.Failures,
			fmt.Sprintf("corpus average %.4f is below the threshold %.4f", report.Average, threshold))
	}

	report.Pass = len(report.Failures) == 0
	return report
}
