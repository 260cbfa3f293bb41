package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/models"
)

const banditName = "bandit"

// Bandit runs the bandit Python SAST tool and normalizes its JSON output.
type Bandit struct {
	path    string
	timeout time.Duration
	logger  hclog.Logger
}

// NewBandit creates a bandit runner. path overrides the executable
// location; empty means look up "bandit" on PATH.
func NewBandit(path string, timeout time.Duration, logger hclog.Logger) *Bandit {
	if path == "" {
		path = banditName
	}
	return &Bandit{
		path:    path,
		timeout: timeout,
		logger:  logger,
	}
}

func (b *Bandit) Name() string { return banditName }

// Run scans targetDir recursively. Bandit exits 1 when it finds issues,
// so the exit code alone never fails the scan; unparseable output does.
func (b *Bandit) Run(ctx context.Context, targetDir string) (*models.ScanResult, error) {
	b.logger.Info("scan is starting", "target", targetDir)

	out, err := runTool(ctx, b.logger, banditName, b.timeout, b.path, "-r", "-f", "json", targetDir)
	if err != nil {
		return nil, err
	}

	findings, err := parseBanditOutput(out.stdout)
	if err != nil {
		b.logger.Error("bandit output is not parseable", "exitCode", out.exitCode, "stderr", string(out.stderr))
		return nil, &ScanError{Scanner: banditName, Kind: ErrKindParse, Err: err}
	}

	b.logger.Info("scan finished", "target", targetDir, "findings", len(findings))
	return &models.ScanResult{
		Scanner:   banditName,
		Findings:  findings,
		RawOutput: string(out.stdout),
	}, nil
}

type banditReport struct {
	Results []banditIssue `json:"results"`
}

type banditIssue struct {
	Filename        string `json:"filename"`
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	IssueText       string `json:"issue_text"`
	TestID          string `json:"test_id"`
	LineNumber      int    `json:"line_number"`
}

// Bandit vocabulary to common enums. Unknown values fall back to
// info/low rather than being dropped.
var banditSeverityMap = map[string]models.Severity{
	"LOW":    models.SeverityLow,
	"MEDIUM": models.SeverityMedium,
	"HIGH":   models.SeverityHigh,
}

var banditConfidenceMap = map[string]models.Confidence{
	"LOW":    models.ConfidenceLow,
	"MEDIUM": models.ConfidenceMedium,
	"HIGH":   models.ConfidenceHigh,
}

// parseBanditOutput converts bandit's native JSON report into common
// findings. Pure function; tests feed it canned tool output.
func parseBanditOutput(data []byte) ([]models.Finding, error) {
	var report banditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode bandit JSON: %w", err)
	}

	findings := make([]models.Finding, 0, len(report.Results))
	for _, issue := range report.Results {
		severity, ok := banditSeverityMap[issue.IssueSeverity]
		if !ok {
			severity = models.SeverityInfo
		}
		confidence, ok := banditConfidenceMap[issue.IssueConfidence]
		if !ok {
			confidence = models.ConfidenceLow
		}

		findings = append(findings, models.Finding{
			Scanner:    banditName,
			Severity:   severity,
			Confidence: confidence,
			FilePath:   issue.Filename,
			Line:       issue.LineNumber,
			RuleID:     issue.TestID,
			Message:    issue.IssueText,
		})
	}
	return findings, nil
}
