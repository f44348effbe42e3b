package model

import "time"

// Grant represents a single funding opportunity from the grants.gov
// extract, mapped for storage.
type Grant struct {
	OpportunityID         string     `bson:"opportunityId"         json:"opportunityId"`
	OpportunityNumber     string     `bson:"opportunityNumber"     json:"opportunityNumber"`
	Title                 string     `bson:"title"                 json:"title"`
	AgencyCode            string     `bson:"agencyCode"            json:"agencyCode"`
	AgencyName            string     `bson:"agencyName"            json:"agencyName"`
	Category              string     `bson:"category"              json:"category"`
	OpportunityCategory   string     `bson:"opportunityCategory"   json:"opportunityCategory"`
	FundingInstrumentType string     `bson:"fundingInstrumentType" json:"fundingInstrumentType"`
	Description           string     `bson:"description"           json:"description"`
	EligibleApplicants    []string   `bson:"eligibleApplicants"    json:"eligibleApplicants"`
	EligibilityText       string     `bson:"eligibilityText"       json:"eligibilityText"`
	PostDate              *time.Time `bson:"postDate"              json:"postDate"`
	CloseDate             *time.Time `bson:"closeDate"             json:"closeDate"`
	LastUpdatedDate       *time.Time `bson:"lastUpdatedDate"       json:"lastUpdatedDate"`
	AwardCeiling          *float64   `bson:"awardCeiling"          json:"awardCeiling"`
	AwardFloor            *float64   `bson:"awardFloor"            json:"awardFloor"`
	EstimatedFunding      *float64   `bson:"estimatedFunding"      json:"estimatedFunding"`
	ExpectedAwards        *int64     `bson:"expectedAwards"        json:"expectedAwards"`
	AdditionalInfoURL     string     `bson:"additionalInfoUrl"     json:"additionalInfoUrl"`
	ContactEmail          string     `bson:"contactEmail"          json:"contactEmail"`
	LastSyncedAt          time.Time  `bson:"lastSyncedAt"          json:"lastSyncedAt"`
	IsActive              bool       `bson:"isActive"              json:"isActive"`
}

// ExpiredBefore reports whether the grant closed before cutoff. Grants
// without a close date never expire.
func (g Grant) ExpiredBefore(cutoff time.Time) bool {
	return g.CloseDate != nil && g.CloseDate.Before(cutoff)
}
