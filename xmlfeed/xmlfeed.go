// Package xmlfeed turns a grants.gov XML extract into Grant records.
package xmlfeed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"grants/dataloader/appcontext"
	"grants/dataloader/datalake/model"
	"grants/dataloader/eligibility"
)

// SynopsisElement is the element name of one opportunity in the extract.
const SynopsisElement = "OpportunitySynopsisDetail_1_0"

var dateLayouts = []string{"01022006", "2006-01-02", "01/02/2006"}

var errDecodeXML = errors.New("error decoding extract xml")

func DecodeXMLError(baseErr error) error {
	return fmt.Errorf("%w, %w", errDecodeXML, baseErr)
}

// Opportunity mirrors an OpportunitySynopsisDetail_1_0 element.
type Opportunity struct {
	OpportunityID                      string   `xml:"OpportunityID"`
	OpportunityTitle                   string   `xml:"OpportunityTitle"`
	OpportunityNumber                  string   `xml:"OpportunityNumber"`
	OpportunityCategory                string   `xml:"OpportunityCategory"`
	FundingInstrumentType              string   `xml:"FundingInstrumentType"`
	CategoryOfFundingActivity          string   `xml:"CategoryOfFundingActivity"`
	EligibleApplicants                 []string `xml:"EligibleApplicants"`
	AdditionalInformationOnEligibility string   `xml:"AdditionalInformationOnEligibility"`
	AgencyCode                         string   `xml:"AgencyCode"`
	AgencyName                         string   `xml:"AgencyName"`
	PostDate                           string   `xml:"PostDate"`
	CloseDate                          string   `xml:"CloseDate"`
	LastUpdatedDate                    string   `xml:"LastUpdatedDate"`
	AwardCeiling                       string   `xml:"AwardCeiling"`
	AwardFloor                         string   `xml:"AwardFloor"`
	EstimatedTotalProgramFunding       string   `xml:"EstimatedTotalProgramFunding"`
	ExpectedNumberOfAwards             string   `xml:"ExpectedNumberOfAwards"`
	Description                        string   `xml:"Description"`
	AdditionalInformationURL           string   `xml:"AdditionalInformationURL"`
	GrantorContactEmail                string   `xml:"GrantorContactEmail"`
}

// FeedParser streams the extract and applies the eligibility filter.
type FeedParser struct {
	filter *eligibility.Filter
	now    func() time.Time
}

// NewFeedParser creates a FeedParser. A nil filter keeps every record.
func NewFeedParser(filter *eligibility.Filter) *FeedParser {
	if filter == nil {
		filter = eligibility.NewFilter(nil)
	}
	return &FeedParser{filter: filter, now: time.Now}
}

// Parse reads every synopsis element from r.
func (p *FeedParser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	logger := appcontext.LoggerFromContext(ctx)
	decoder := xml.NewDecoder(r)
	result := &ParseResult{}
	syncedAt := p.now().UTC()

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("parsing interrupted: %w", err)
		}

		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, DecodeXMLError(err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != SynopsisElement {
			continue
		}

		var opp Opportunity
		if err := decoder.DecodeElement(&opp, &start); err != nil {
			return nil, DecodeXMLError(err)
		}
		result.Total++

		grant, ok := ToGrant(opp)
		if !ok {
			result.Invalid++
			logger.WarnContext(ctx, "Skipping opportunity without id or title", "opportunityId", opp.OpportunityID)
			continue
		}

		if p.filter.IsGovernmentOnly(eligibilityText(grant), grant.EligibleApplicants) {
			result.Ineligible++
			logger.DebugContext(ctx, "Skipping government-only opportunity", "opportunityId", grant.OpportunityID)
			continue
		}

		grant.LastSyncedAt = syncedAt
		grant.IsActive = true
		result.Grants = append(result.Grants, grant)
	}

	logger.InfoContext(ctx, "Parsed extract",
		"total", result.Total,
		"kept", len(result.Grants),
		"invalid", result.Invalid,
		"ineligible", result.Ineligible,
	)

	return result, nil
}

// ToGrant converts a decoded element. It reports false when the record has
// no id or title.
func ToGrant(opp Opportunity) (model.Grant, bool) {
	id := strings.TrimSpace(opp.OpportunityID)
	title := strings.TrimSpace(opp.OpportunityTitle)
	if id == "" || title == "" {
		return model.Grant{}, false
	}

	applicants := make([]string, 0, len(opp.EligibleApplicants))
	for _, code := range opp.EligibleApplicants {
		if code = strings.TrimSpace(code); code != "" {
			applicants = append(applicants, code)
		}
	}

	return model.Grant{
		OpportunityID:         id,
		OpportunityNumber:     strings.TrimSpace(opp.OpportunityNumber),
		Title:                 title,
		AgencyCode:            strings.TrimSpace(opp.AgencyCode),
		AgencyName:            strings.TrimSpace(opp.AgencyName),
		Category:              strings.TrimSpace(opp.CategoryOfFundingActivity),
		OpportunityCategory:   strings.TrimSpace(opp.OpportunityCategory),
		FundingInstrumentType: strings.TrimSpace(opp.FundingInstrumentType),
		Description:           strings.TrimSpace(opp.Description),
		EligibleApplicants:    applicants,
		EligibilityText:       strings.TrimSpace(opp.AdditionalInformationOnEligibility),
		PostDate:              ParseDate(opp.PostDate),
		CloseDate:             ParseDate(opp.CloseDate),
		LastUpdatedDate:       ParseDate(opp.LastUpdatedDate),
		AwardCeiling:          ParseAmount(opp.AwardCeiling),
		AwardFloor:            ParseAmount(opp.AwardFloor),
		EstimatedFunding:      ParseAmount(opp.EstimatedTotalProgramFunding),
		ExpectedAwards:        parseCount(opp.ExpectedNumberOfAwards),
		AdditionalInfoURL:     strings.TrimSpace(opp.AdditionalInformationURL),
		ContactEmail:          strings.TrimSpace(opp.GrantorContactEmail),
	}, true
}

// eligibilityText is the free text the eligibility filter inspects; the
// description stands in when no eligibility notes were published.
func eligibilityText(g model.Grant) string {
	if g.EligibilityText != "" {
		return g.EligibilityText
	}
	return g.Description
}

// ParseDate parses the extract's MMDDYYYY dates (and a couple of common
// alternatives) as UTC midnight. Empty or malformed values yield nil.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// ParseAmount parses a dollar amount, ignoring "$" and thousands separators.
func ParseAmount(raw string) *float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseCount(raw string) *int64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
