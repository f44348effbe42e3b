package xmlfeed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grants/dataloader/datalake/model"
	"grants/dataloader/eligibility"
)

const sampleExtract = `<?xml version="1.0" encoding="UTF-8"?>
<Grants xmlns="http://apply.grants.gov/system/OpportunityDetail-V1.0">
  <OpportunitySynopsisDetail_1_0>
    <OpportunityID>350001</OpportunityID>
    <OpportunityTitle>Community Food Projects</OpportunityTitle>
    <OpportunityNumber>USDA-NIFA-CFP-2024</OpportunityNumber>
    <OpportunityCategory>D</OpportunityCategory>
    <FundingInstrumentType>G</FundingInstrumentType>
    <CategoryOfFundingActivity>AG</CategoryOfFundingActivity>
    <EligibleApplicants>12</EligibleApplicants>
    <EligibleApplicants>25</EligibleApplicants>
    <AdditionalInformationOnEligibility>Private 501(c)(3) organizations and government entities only in partnership.</AdditionalInformationOnEligibility>
    <AgencyCode>USDA-NIFA</AgencyCode>
    <AgencyName>National Institute of Food and Agriculture</AgencyName>
    <PostDate>01152024</PostDate>
    <CloseDate>03312024</CloseDate>
    <LastUpdatedDate>01162024</LastUpdatedDate>
    <AwardCeiling>$400,000</AwardCeiling>
    <AwardFloor>10000</AwardFloor>
    <EstimatedTotalProgramFunding>4,800,000</EstimatedTotalProgramFunding>
    <ExpectedNumberOfAwards>12</ExpectedNumberOfAwards>
    <Description>Supports community food projects.</Description>
    <AdditionalInformationURL>https://example.gov/cfp</AdditionalInformationURL>
    <GrantorContactEmail>cfp@example.gov</GrantorContactEmail>
  </OpportunitySynopsisDetail_1_0>
  <OpportunityForecastDetail_1_0>
    <OpportunityID>350002</OpportunityID>
    <OpportunityTitle>Forecast only</OpportunityTitle>
  </OpportunityForecastDetail_1_0>
  <OpportunitySynopsisDetail_1_0>
    <OpportunityID>350003</OpportunityID>
    <OpportunityTitle>State Highway Safety</OpportunityTitle>
    <EligibleApplicants>00</EligibleApplicants>
    <AdditionalInformationOnEligibility>Eligibility is limited to state governments only.</AdditionalInformationOnEligibility>
    <CloseDate></CloseDate>
  </OpportunitySynopsisDetail_1_0>
  <OpportunitySynopsisDetail_1_0>
    <OpportunityID></OpportunityID>
    <OpportunityTitle>Missing id</OpportunityTitle>
  </OpportunitySynopsisDetail_1_0>
  <OpportunitySynopsisDetail_1_0>
    <OpportunityID>350004</OpportunityID>
    <OpportunityTitle>Arts Access</OpportunityTitle>
    <AwardCeiling>none</AwardCeiling>
  </OpportunitySynopsisDetail_1_0>
</Grants>`

func newTestParser(t *testing.T, now time.Time) *FeedParser {
	t.Helper()
	rules, err := eligibility.DefaultRules()
	require.NoError(t, err)
	p := NewFeedParser(eligibility.NewFilter(rules))
	p.now = func() time.Time { return now }
	return p
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrFloat(f float64) *float64    { return &f }
func ptrInt(i int64) *int64          { return &i }

func TestParse_Extract(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	parser := newTestParser(t, now)

	result, err := parser.Parse(context.Background(), strings.NewReader(sampleExtract))
	require.NoError(t, err)

	assert.EqualValues(t, 4, result.Total)
	assert.EqualValues(t, 1, result.Invalid)
	assert.EqualValues(t, 1, result.Ineligible)
	require.Len(t, result.Grants, 2)

	want := model.Grant{
		OpportunityID:         "350001",
		OpportunityNumber:     "USDA-NIFA-CFP-2024",
		Title:                 "Community Food Projects",
		AgencyCode:            "USDA-NIFA",
		AgencyName:            "National Institute of Food and Agriculture",
		Category:              "AG",
		OpportunityCategory:   "D",
		FundingInstrumentType: "G",
		Description:           "Supports community food projects.",
		EligibleApplicants:    []string{"12", "25"},
		EligibilityText:       "Private 501(c)(3) organizations and government entities only in partnership.",
		PostDate:              ptrTime(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		CloseDate:             ptrTime(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)),
		LastUpdatedDate:       ptrTime(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)),
		AwardCeiling:          ptrFloat(400000),
		AwardFloor:            ptrFloat(10000),
		EstimatedFunding:      ptrFloat(4800000),
		ExpectedAwards:        ptrInt(12),
		AdditionalInfoURL:     "https://example.gov/cfp",
		ContactEmail:          "cfp@example.gov",
		LastSyncedAt:          now,
		IsActive:              true,
	}
	if diff := cmp.Diff(want, result.Grants[0]); diff != "" {
		t.Errorf("first grant mismatch (-want +got):\n%s", diff)
	}

	second := result.Grants[1]
	assert.Equal(t, "350004", second.OpportunityID)
	assert.Nil(t, second.AwardCeiling)
	assert.Nil(t, second.CloseDate)
}

func TestParse_MalformedXML(t *testing.T) {
	parser := newTestParser(t, time.Now())

	_, err := parser.Parse(context.Background(), strings.NewReader("<Grants><OpportunitySynopsisDetail_1_0><OpportunityID>1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, errDecodeXML)
}

func TestParse_CanceledContext(t *testing.T) {
	parser := newTestParser(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parser.Parse(ctx, strings.NewReader(sampleExtract))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_NilFilterKeepsEverythingValid(t *testing.T) {
	parser := NewFeedParser(nil)

	result, err := parser.Parse(context.Background(), strings.NewReader(sampleExtract))

	require.NoError(t, err)
	assert.Len(t, result.Grants, 3)
	assert.Zero(t, result.Ineligible)
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *ParseDate("12312024"))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *ParseDate(" 2024-06-01 "))
	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("13452024"))
}

func TestParseAmount(t *testing.T) {
	assert.InDelta(t, 1250000.5, *ParseAmount("$1,250,000.50"), 0.001)
	assert.Nil(t, ParseAmount(""))
	assert.Nil(t, ParseAmount("none"))
}

func TestDescriptionStandsInForEligibility(t *testing.T) {
	parser := newTestParser(t, time.Now())
	doc := `<Grants><OpportunitySynopsisDetail_1_0>
<OpportunityID>9</OpportunityID><OpportunityTitle>T</OpportunityTitle>
<Description>Applicants: federal agencies only.</Description>
</OpportunitySynopsisDetail_1_0></Grants>`

	result, err := parser.Parse(context.Background(), strings.NewReader(doc))

	require.NoError(t, err)
	assert.Empty(t, result.Grants)
	assert.EqualValues(t, 1, result.Ineligible)
}
