package commands

import (
	"fmt"
	"path/filepath"

	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fidelity"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/output"
)

type ValidateOptions struct {
	// Dir is the fixture corpus directory, relative to the workspace.
	Dir             string
	Threshold       float64
	PerFixtureFloor float64
	Flags           config.RuntimeFlags
	Environment     config.Environment
	Logs            logging.Provider
}

// RunValidate round-trips every fixture in the corpus directory and gates on
// the corpus-average fidelity score. The flag threshold wins over the config
// file; both default to the contract value.
func RunValidate(workDir string, options ValidateOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandValidate)}

	session, err := OpenSession(workDir, SessionOptions{
		Flags:       options.Flags,
		Environment: options.Environment,
		Logs:        options.Logs,
	})
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	threshold := options.Threshold
	if threshold <= 0 {
		threshold = session.Settings.FidelityThreshold
	}

	dir := options.Dir
	if dir == "" {
		dir = "fixtures"
	}

	fidelityReport, err := fidelity.ValidateCorpus(session.Workspace, dir, fidelity.Options{
		Threshold:       threshold,
		PerFixtureFloor: options.PerFixtureFloor,
	})
	if err != nil {
		report.FatalKind = contracts.FailureKindConfig
		return report, err
	}

	for _, fixture := range fidelityReport.Fixtures {
		result := contracts.PerDocumentResult{
			LocalPath: filepath.Join(dir, fixture.Name),
			Action:    "none",
			Status:    contracts.DocumentStatusSuccess,
			Messages: []contracts.ResultMessage{{
				Level: "info",
				Text:  fmt.Sprintf("fidelity score %.4f", fixture.Score),
			}},
		}
		if fixture.Err != nil {
			result.Status = contracts.DocumentStatusFailed
			result.FailureKind = contracts.FailureKindConversion
			result.Messages = []contracts.ResultMessage{{Level: "error", Text: fixture.Err.Error()}}
		} else if fidelityReport.PerFixtureFloor > 0 && fixture.Score < fidelityReport.PerFixtureFloor {
			result.Status = contracts.DocumentStatusFailed
			result.FailureKind = contracts.FailureKindConversion
			result.Messages = append(result.Messages, contracts.ResultMessage{
				Level: "error",
				Text:  fmt.Sprintf("below the per-fixture floor %.4f", fidelityReport.PerFixtureFloor),
			})
		}
		report.Documents = append(report.Documents, result)
	}

	if !fidelityReport.Pass {
		report.FatalKind = contracts.FailureKindConversion
		return report, fmt.Errorf("fidelity gate failed: corpus average %.4f, threshold %.4f",
			fidelityReport.Average, fidelityReport.Threshold)
	}
	return report, nil
}
