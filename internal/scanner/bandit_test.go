package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/scanio-agent/internal/models"
)

const banditSampleOutput = `{
  "errors": [],
  "generated_at": "2024-05-02T10:00:00Z",
  "results": [
    {
      "filename": "app/db.py",
      "issue_confidence": "MEDIUM",
      "issue_severity": "HIGH",
      "issue_text": "Possible SQL injection vector through string-based query construction.",
      "line_number": 42,
      "test_id": "B608",
      "test_name": "hardcoded_sql_expressions"
    },
    {
      "filename": "app/util.py",
      "issue_confidence": "HIGH",
      "issue_severity": "LOW",
      "issue_text": "Standard pseudo-random generators are not suitable for security purposes.",
      "line_number": 7,
      "test_id": "B311",
      "test_name": "blacklist"
    }
  ]
}`

func TestParseBanditOutput(t *testing.T) {
	findings, err := parseBanditOutput([]byte(banditSampleOutput))
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, models.Finding{
		Scanner:    "bandit",
		Severity:   models.SeverityHigh,
		Confidence: models.ConfidenceMedium,
		FilePath:   "app/db.py",
		Line:       42,
		RuleID:     "B608",
		Message:    "Possible SQL injection vector through string-based query construction.",
	}, findings[0])

	assert.Equal(t, models.SeverityLow, findings[1].Severity)
	assert.Equal(t, models.ConfidenceHigh, findings[1].Confidence)
}

func TestParseBanditOutputEmptyResults(t *testing.T) {
	findings, err := parseBanditOutput([]byte(`{"errors": [], "results": []}`))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestParseBanditOutputGarbage(t *testing.T) {
	_, err := parseBanditOutput([]byte("Traceback (most recent call last):"))
	assert.Error(t, err)
}

func TestBanditSeverityLookupDeterminism(t *testing.T) {
	testCases := []struct {
		input          string
		wantSeverity   models.Severity
		wantConfidence models.Confidence
	}{
		{input: "LOW", wantSeverity: models.SeverityLow, wantConfidence: models.ConfidenceLow},
		{input: "MEDIUM", wantSeverity: models.SeverityMedium, wantConfidence: models.ConfidenceMedium},
		{input: "HIGH", wantSeverity: models.SeverityHigh, wantConfidence: models.ConfidenceHigh},
		// Unmapped vocabulary must default to info/low, never be dropped.
		{input: "UNDEFINED", wantSeverity: models.SeverityInfo, wantConfidence: models.ConfidenceLow},
		{input: "", wantSeverity: models.SeverityInfo, wantConfidence: models.ConfidenceLow},
	}

	for _, tc := range testCases {
		t.Run("severity "+tc.input, func(t *testing.T) {
			// Run the lookup twice; the mapping must be stable.
			for i := 0; i < 2; i++ {
				severity, ok := banditSeverityMap[tc.input]
				if !ok {
					severity = models.SeverityInfo
				}
				assert.Equal(t, tc.wantSeverity, severity)

				confidence, ok := banditConfidenceMap[tc.input]
				if !ok {
					confidence = models.ConfidenceLow
				}
				assert.Equal(t, tc.wantConfidence, confidence)
			}
		})
	}
}
