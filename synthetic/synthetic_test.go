package synthetic_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grants/dataloader/archive"
	"grants/dataloader/eligibility"
	"grants/dataloader/grantsgov"
	"grants/dataloader/synthetic"
	"grants/dataloader/xmlfeed"
)

var now = time.Date(2024, 9, 21, 8, 30, 0, 0, time.UTC)

func TestBuildExtract_IsDeterministic(t *testing.T) {
	first, err := synthetic.BuildExtract(10, now)
	require.NoError(t, err)
	second, err := synthetic.BuildExtract(10, now)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second))
	assert.NoError(t, archive.ValidateZip(first))
}

func TestBuildExtract_ParsesWithMixedEligibility(t *testing.T) {
	data, err := synthetic.BuildExtract(10, now)
	require.NoError(t, err)

	name, xmlData, err := archive.ExtractXML(data)
	require.NoError(t, err)
	assert.Equal(t, "GrantsDBExtract20240921v2.xml", name)

	rules, err := eligibility.DefaultRules()
	require.NoError(t, err)
	result, err := xmlfeed.NewFeedParser(eligibility.NewFilter(rules)).Parse(context.Background(), bytes.NewReader(xmlData))
	require.NoError(t, err)

	assert.EqualValues(t, 10, result.Total)
	assert.Zero(t, result.Invalid)
	assert.EqualValues(t, 2, result.Ineligible, "one government-only row per five")
	require.Len(t, result.Grants, 8)

	expired, rolling := 0, 0
	for _, g := range result.Grants {
		switch {
		case g.CloseDate == nil:
			rolling++
		case g.ExpiredBefore(now):
			expired++
		}
	}
	assert.Equal(t, 2, expired)
	assert.Equal(t, 2, rolling)
}

func TestGenerateSyntheticData_WritesArchiveAndListing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "synthetic")

	require.NoError(t, synthetic.GenerateSyntheticData(5, dir))

	listing, err := os.Open(filepath.Join(dir, synthetic.ListingFileName))
	require.NoError(t, err)
	defer listing.Close()

	files, err := grantsgov.ParseListing(listing, "http://localhost:8080")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.False(t, files[0].ExtractedDate.IsZero())
	assert.NotEmpty(t, files[0].Size)

	data, err := os.ReadFile(filepath.Join(dir, files[0].FileName))
	require.NoError(t, err)
	assert.NoError(t, archive.ValidateZip(data))
}

func TestExtractFileName(t *testing.T) {
	assert.Equal(t, "GrantsDBExtract20240921v2.zip", synthetic.ExtractFileName(now))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 bytes", synthetic.FormatSize(512))
	assert.Equal(t, "2.0 KB", synthetic.FormatSize(2048))
	assert.Equal(t, "87.4 MB", synthetic.FormatSize(91645542))
	assert.Equal(t, "1.5 GB", synthetic.FormatSize(1610612736))
}
