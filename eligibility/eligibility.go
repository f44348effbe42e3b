// Package eligibility decides whether an opportunity is closed to
// nonprofits, based on keyword rules over its free-text eligibility.
package eligibility

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

var errEmptyRules = errors.New("eligibility rules define no government-only phrases")

// Rules are the keyword lists used by Filter.
type Rules struct {
	GovernmentOnly          []string `yaml:"government_only"`
	NonprofitInclusive      []string `yaml:"nonprofit_inclusive"`
	NonprofitApplicantCodes []string `yaml:"nonprofit_applicant_codes"`
}

// DefaultRules returns the rules shipped with the binary.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) (*Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read eligibility rules %s: %w", path, err)
	}

	rules, err := ParseRules(raw)
	if err != nil {
		return nil, fmt.Errorf("eligibility rules %s: %w", path, err)
	}

	return rules, nil
}

// ParseRules decodes YAML rules.
func ParseRules(raw []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode eligibility rules: %w", err)
	}
	if len(rules.GovernmentOnly) == 0 {
		return nil, errEmptyRules
	}

	return &rules, nil
}

// Filter evaluates Rules. The zero value excludes nothing.
type Filter struct {
	governmentOnly     []string
	nonprofitInclusive []string
	nonprofitCodes     map[string]struct{}
}

// NewFilter normalizes rules into a Filter.
func NewFilter(rules *Rules) *Filter {
	f := &Filter{nonprofitCodes: make(map[string]struct{})}
	if rules == nil {
		return f
	}

	f.governmentOnly = normalize(rules.GovernmentOnly)
	f.nonprofitInclusive = normalize(rules.NonprofitInclusive)
	for _, code := range rules.NonprofitApplicantCodes {
		f.nonprofitCodes[strings.TrimSpace(code)] = struct{}{}
	}

	return f
}

// IsGovernmentOnly reports whether the opportunity should be dropped: the
// text names a government-only restriction and neither the text nor the
// applicant codes admit nonprofits.
func (f *Filter) IsGovernmentOnly(text string, applicantCodes []string) bool {
	folded := fold(text)
	if folded == "" || !containsAny(folded, f.governmentOnly) {
		return false
	}
	if containsAny(folded, f.nonprofitInclusive) {
		return false
	}
	for _, code := range applicantCodes {
		if _, ok := f.nonprofitCodes[strings.TrimSpace(code)]; ok {
			return false
		}
	}

	return true
}

func normalize(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = fold(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fold lowercases and collapses whitespace so phrases match across line breaks.
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
