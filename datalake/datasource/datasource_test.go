package datasource_test

import (
	"errors"
	"testing"
	"time"

	"grants/dataloader/datalake/datasource"
)

func TestGrantsExtractor_NewGrantsExtractor(t *testing.T) {
	extractor := datasource.NewGrantsExtractor()
	if extractor == nil {
		t.Errorf("NewGrantsExtractor() returned nil, expected a GrantsExtractor instance")
	}
}

func TestGrantsExtractor_ExtractInfo_Success(t *testing.T) {
	extractor := datasource.NewGrantsExtractor()
	tests := []struct {
		filename        string
		expectedDS      datasource.DataSource
		expectedDate    time.Time
		expectedVersion int
	}{
		{"GrantsDBExtract20240923v2.zip", datasource.GrantsGov, time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC), 2},
		{"grantsdbextract20250101v10.zip", datasource.GrantsGov, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 10},
		{"extracts/GrantsDBExtract20231130v1.ZIP", datasource.GrantsGov, time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC), 1},
		{"synthetic-GrantsDBExtract20240102v2.zip", datasource.Synthetic, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 2},
	}

	for _, test := range tests {
		t.Run(test.filename, func(t *testing.T) {
			info, err := extractor.ExtractInfo(test.filename)
			if err != nil {
				t.Fatalf("ExtractInfo(%s) returned an unexpected error: %v", test.filename, err)
			}
			if info.DataSource != string(test.expectedDS) {
				t.Errorf("ExtractInfo(%s) DataSource got %s, want %s", test.filename, info.DataSource, test.expectedDS)
			}
			if !info.ExtractDate.Equal(test.expectedDate) {
				t.Errorf("ExtractInfo(%s) ExtractDate got %s, want %s", test.filename, info.ExtractDate, test.expectedDate)
			}
			if info.Version != test.expectedVersion {
				t.Errorf("ExtractInfo(%s) Version got %d, want %d", test.filename, info.Version, test.expectedVersion)
			}
		})
	}
}

func TestGrantsExtractor_ExtractInfo_NoMatch(t *testing.T) {
	extractor := datasource.NewGrantsExtractor()
	tests := []string{
		"somefile.csv",
		"GrantsDBExtract2024v2.zip",
		"GrantsDBExtract20241399v2.zip",
		"GrantsDBExtract20240923.zip",
	}

	for _, filename := range tests {
		t.Run(filename, func(t *testing.T) {
			info, err := extractor.ExtractInfo(filename)
			if !errors.Is(err, datasource.ErrUnableToExtractInfo) {
				t.Errorf("ExtractInfo(%s) expected ErrUnableToExtractInfo, got %v", filename, err)
			}
			if info != nil {
				t.Errorf("ExtractInfo(%s) returned info %v, expected nil", filename, info)
			}
		})
	}
}
