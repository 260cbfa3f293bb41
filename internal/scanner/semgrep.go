package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/scanio-agent/internal/models"
)

const semgrepName = "semgrep"

// Semgrep runs the semgrep SAST tool and normalizes its SARIF output.
type Semgrep struct {
	path    string
	ruleSet string
	timeout time.Duration
	logger  hclog.Logger
}

// NewSemgrep creates a semgrep runner. path overrides the executable
// location; empty means look up "semgrep" on PATH.
func NewSemgrep(path string, timeout time.Duration, logger hclog.Logger) *Semgrep {
	if path == "" {
		path = semgrepName
	}
	return &Semgrep{
		path:    path,
		ruleSet: "auto",
		timeout: timeout,
		logger:  logger,
	}
}

func (s *Semgrep) Name() string { return semgrepName }

// Run scans targetDir with SARIF output on stdout. Semgrep may exit
// non-zero when findings are present; the output parsing decides whether
// the scan failed.
func (s *Semgrep) Run(ctx context.Context, targetDir string) (*models.ScanResult, error) {
	s.logger.Info("scan is starting", "target", targetDir)

	out, err := runTool(ctx, s.logger, semgrepName, s.timeout, s.path,
		"scan", "--config", s.ruleSet, "--sarif", "--quiet", targetDir)
	if err != nil {
		return nil, err
	}

	findings, err := parseSemgrepSARIF(out.stdout)
	if err != nil {
		s.logger.Error("semgrep output is not parseable", "exitCode", out.exitCode, "stderr", string(out.stderr))
		return nil, &ScanError{Scanner: semgrepName, Kind: ErrKindParse, Err: err}
	}

	s.logger.Info("scan finished", "target", targetDir, "findings", len(findings))
	return &models.ScanResult{
		Scanner:   semgrepName,
		Findings:  findings,
		RawOutput: string(out.stdout),
	}, nil
}

// SARIF levels to common severity. Unmapped levels fall back to info.
var sarifLevelMap = map[string]models.Severity{
	"error":   models.SeverityHigh,
	"warning": models.SeverityMedium,
	"note":    models.SeverityInfo,
	"none":    models.SeverityInfo,
}

// Rule metadata confidence to common confidence. Unmapped values fall
// back to low.
var semgrepConfidenceMap = map[string]models.Confidence{
	"low":    models.ConfidenceLow,
	"medium": models.ConfidenceMedium,
	"high":   models.ConfidenceHigh,
}

// parseSemgrepSARIF converts a SARIF report into common findings.
// Pure function; tests feed it canned tool output.
func parseSemgrepSARIF(data []byte) ([]models.Finding, error) {
	var report sarif.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode SARIF: %w", err)
	}
	if len(report.Runs) == 0 {
		return nil, fmt.Errorf("SARIF report has no runs")
	}

	var findings []models.Finding
	for _, run := range report.Runs {
		rulesByID := map[string]*sarif.ReportingDescriptor{}
		if run.Tool.Driver != nil {
			for _, rule := range run.Tool.Driver.Rules {
				if rule != nil && rule.ID != "" {
					rulesByID[rule.ID] = rule
				}
			}
		}

		for _, res := range run.Results {
			if res == nil {
				continue
			}

			ruleID := ""
			if res.RuleID != nil {
				ruleID = *res.RuleID
			}

			level := ""
			if res.Level != nil {
				level = strings.ToLower(*res.Level)
			}
			severity, ok := sarifLevelMap[level]
			if !ok {
				severity = models.SeverityInfo
			}

			message := ""
			if res.Message.Text != nil {
				message = *res.Message.Text
			}

			filePath, line := extractLocation(res)

			findings = append(findings, models.Finding{
				Scanner:    semgrepName,
				Severity:   severity,
				Confidence: ruleConfidence(rulesByID[ruleID]),
				FilePath:   filePath,
				Line:       line,
				RuleID:     ruleID,
				Message:    message,
			})
		}
	}
	return findings, nil
}

// extractLocation pulls the first physical location out of a result.
func extractLocation(res *sarif.Result) (string, int) {
	for _, loc := range res.Locations {
		if loc == nil || loc.PhysicalLocation == nil {
			continue
		}

		filePath := ""
		if loc.PhysicalLocation.ArtifactLocation != nil && loc.PhysicalLocation.ArtifactLocation.URI != nil {
			filePath = *loc.PhysicalLocation.ArtifactLocation.URI
		}

		line := 0
		if loc.PhysicalLocation.Region != nil && loc.PhysicalLocation.Region.StartLine != nil {
			line = *loc.PhysicalLocation.Region.StartLine
		}
		return filePath, line
	}
	return "", 0
}

// ruleConfidence reads the confidence annotation semgrep puts in the rule
// property bag.
func ruleConfidence(rule *sarif.ReportingDescriptor) models.Confidence {
	if rule == nil || rule.Properties == nil {
		return models.ConfidenceLow
	}
	raw, ok := rule.Properties["confidence"].(string)
	if !ok {
		return models.ConfidenceLow
	}
	confidence, ok := semgrepConfidenceMap[strings.ToLower(raw)]
	if !ok {
		return models.ConfidenceLow
	}
	return confidence
}
