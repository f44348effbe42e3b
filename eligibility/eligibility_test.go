package eligibility_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grants/dataloader/eligibility"
)

func defaultFilter(t *testing.T) *eligibility.Filter {
	t.Helper()
	rules, err := eligibility.DefaultRules()
	require.NoError(t, err)
	return eligibility.NewFilter(rules)
}

func TestIsGovernmentOnly(t *testing.T) {
	filter := defaultFilter(t)

	tests := []struct {
		name  string
		text  string
		codes []string
		want  bool
	}{
		{"empty text", "", nil, false},
		{"no restriction", "Open to institutions of higher education.", nil, false},
		{"government only", "Eligibility is restricted to government entities only.", nil, true},
		{"mixed case and line break", "Applications are LIMITED TO\n  federal agencies.", nil, true},
		{"501c3 retained", "Government entities only; 501(c)(3) organizations may partner as subrecipients.", nil, false},
		{"nonprofit phrase retained", "State governments only, or nonprofit organizations acting on their behalf.", nil, false},
		{"nonprofit applicant code retained", "State governments only.", []string{"00", "12"}, false},
		{"unrestricted code retained", "Only state and local governments are eligible.", []string{"99"}, false},
		{"government codes do not rescue", "Only state and local governments are eligible.", []string{"00", "01"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, filter.IsGovernmentOnly(tc.text, tc.codes))
		})
	}
}

func TestZeroFilterExcludesNothing(t *testing.T) {
	filter := eligibility.NewFilter(nil)
	assert.False(t, filter.IsGovernmentOnly("government entities only", nil))
}

func TestLoadRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "government_only:\n  - municipal use only\nnonprofit_inclusive:\n  - charity\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := eligibility.LoadRules(path)
	require.NoError(t, err)
	filter := eligibility.NewFilter(rules)

	assert.True(t, filter.IsGovernmentOnly("For municipal use only.", nil))
	assert.False(t, filter.IsGovernmentOnly("For municipal use only, or any charity.", nil))
	assert.False(t, filter.IsGovernmentOnly("Government entities only.", nil))
}

func TestParseRules_RequiresGovernmentPhrases(t *testing.T) {
	_, err := eligibility.ParseRules([]byte("nonprofit_inclusive: [charity]\n"))
	assert.Error(t, err)

	_, err = eligibility.ParseRules([]byte("government_only: [::"))
	assert.Error(t, err)
}
