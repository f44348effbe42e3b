package synthetic

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math/rand"
	"time"

	"github.com/klauspost/compress/zip"

	"grants/dataloader/xmlfeed"
)

const extractNamespace = "http://apply.grants.gov/system/OpportunityDetail-V1.0"

const dateLayout = "01022006"

// Kinds of synthetic opportunity, cycled in this order.
const (
	KindNonprofit = iota
	KindGovernmentOnly
	KindMixed
	KindExpired
	KindRolling
	kindCount
)

type extractDocument struct {
	XMLName       xml.Name              `xml:"Grants"`
	Xmlns         string                `xml:"xmlns,attr"`
	Opportunities []xmlfeed.Opportunity `xml:"OpportunitySynopsisDetail_1_0"`
}

var agencies = []struct{ code, name string }{
	{"USDA-NIFA", "National Institute of Food and Agriculture"},
	{"HHS-ACF", "Administration for Children and Families"},
	{"NEA", "National Endowment for the Arts"},
	{"DOJ-OJP", "Office of Justice Programs"},
	{"EPA", "Environmental Protection Agency"},
}

// ExtractFileName returns the archive name the listing page uses for an
// extract produced on day.
func ExtractFileName(day time.Time) string {
	return fmt.Sprintf("GrantsDBExtract%sv2.zip", day.UTC().Format("20060102"))
}

// Opportunities generates rows synthetic opportunities relative to now.
// Output depends only on rows and now.
func Opportunities(rows int, now time.Time) []xmlfeed.Opportunity {
	rng := rand.New(rand.NewSource(int64(rows))) //nolint:gosec // fixture data
	now = now.UTC()

	opps := make([]xmlfeed.Opportunity, 0, rows)
	for i := 0; i < rows; i++ {
		agency := agencies[i%len(agencies)]
		ceiling := (rng.Intn(500) + 1) * 1000

		opp := xmlfeed.Opportunity{
			OpportunityID:                fmt.Sprintf("%d", 900000+i),
			OpportunityTitle:             fmt.Sprintf("Synthetic opportunity %d", i),
			OpportunityNumber:            fmt.Sprintf("SYN-%s-%04d", agency.code, i),
			OpportunityCategory:          "D",
			FundingInstrumentType:        "G",
			CategoryOfFundingActivity:    "CD",
			AgencyCode:                   agency.code,
			AgencyName:                   agency.name,
			PostDate:                     now.AddDate(0, 0, -14).Format(dateLayout),
			LastUpdatedDate:              now.AddDate(0, 0, -1).Format(dateLayout),
			AwardCeiling:                 fmt.Sprintf("$%d", ceiling),
			AwardFloor:                   fmt.Sprintf("%d", ceiling/10),
			EstimatedTotalProgramFunding: fmt.Sprintf("%d", ceiling*(rng.Intn(10)+1)),
			ExpectedNumberOfAwards:       fmt.Sprintf("%d", rng.Intn(20)+1),
			Description:                  fmt.Sprintf("Synthetic funding opportunity %d for testing the grants loader.", i),
			AdditionalInformationURL:     fmt.Sprintf("https://example.org/opportunities/%d", 900000+i),
			GrantorContactEmail:          "grants@example.org",
			CloseDate:                    now.AddDate(0, 0, 30+i%60).Format(dateLayout),
		}

		switch i % kindCount {
		case KindNonprofit:
			opp.EligibleApplicants = []string{"12", "13"}
			opp.AdditionalInformationOnEligibility = "Nonprofit organizations are encouraged to apply."
		case KindGovernmentOnly:
			opp.EligibleApplicants = []string{"00"}
			opp.AdditionalInformationOnEligibility = "Eligibility is limited to state governments only."
		case KindMixed:
			opp.EligibleApplicants = []string{"00"}
			opp.AdditionalInformationOnEligibility = "Government entities only, in partnership with 501(c)(3) organizations."
		case KindExpired:
			opp.EligibleApplicants = []string{"25"}
			opp.CloseDate = now.AddDate(0, 0, -30).Format(dateLayout)
		case KindRolling:
			opp.EligibleApplicants = []string{"99"}
			opp.CloseDate = ""
		}

		opps = append(opps, opp)
	}

	return opps
}

// BuildExtract renders rows synthetic opportunities as an extract archive
// holding a single XML entry.
func BuildExtract(rows int, now time.Time) ([]byte, error) {
	doc := extractDocument{Xmlns: extractNamespace, Opportunities: Opportunities(rows, now)}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extract: %w", err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.CreateHeader(&zip.FileHeader{
		Name:     xmlEntryName(now),
		Method:   zip.Deflate,
		Modified: now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zip entry: %w", err)
	}
	if _, err := entry.Write([]byte(xml.Header)); err != nil {
		return nil, fmt.Errorf("failed to write zip entry: %w", err)
	}
	if _, err := entry.Write(body); err != nil {
		return nil, fmt.Errorf("failed to write zip entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish zip: %w", err)
	}

	return buf.Bytes(), nil
}

func xmlEntryName(now time.Time) string {
	return fmt.Sprintf("GrantsDBExtract%sv2.xml", now.UTC().Format("20060102"))
}
