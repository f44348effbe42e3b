package grantsgov

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<h1>XML Extract</h1>
<table class="usa-table">
  <thead><tr><th>File Name</th><th>Size</th><th>Extracted Date/Time</th></tr></thead>
  <tbody>
    <tr>
      <td><a href="https://prod-grants-gov-chatbot.s3.amazonaws.com/extracts/GrantsDBExtract20240921v2.zip">GrantsDBExtract20240921v2.zip</a></td>
      <td>87.4 MB</td>
      <td>Sep 21, 2024 04:37:52 AM EDT</td>
    </tr>
    <tr>
      <td><a href="/extracts/GrantsDBExtract20240923v2.zip">GrantsDBExtract20240923v2.zip</a></td>
      <td>88 MB</td>
      <td>Sep 23, 2024 4:35 AM EDT</td>
    </tr>
    <tr>
      <td><a href="/extracts/GrantsDBExtract20240922v2.zip">GrantsDBExtract20240922v2.zip</a></td>
      <td>512 KB</td>
      <td>2024-09-22 04:36:10</td>
    </tr>
    <tr>
      <td><a href="/extracts/GrantsDBExtract20240921v2.zip">GrantsDBExtract20240921v2.zip</a></td>
      <td>87.4 MB</td>
      <td>Sep 21, 2024 04:37:52 AM EDT</td>
    </tr>
  </tbody>
</table>
<p><a href="/other/report.pdf">Annual report</a></p>
</body></html>`

func TestParseListing_TableRows(t *testing.T) {
	files, err := ParseListing(strings.NewReader(listingPage), "https://downloads.example/extracts/")
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "GrantsDBExtract20240921v2.zip", files[0].FileName)
	assert.Equal(t, "87.4 MB", files[0].Size)
	assert.EqualValues(t, 91645542, files[0].SizeBytes)
	assert.Equal(t, time.Date(2024, 9, 21, 4, 37, 52, 0, time.UTC), files[0].ExtractedDate)
	assert.Equal(t, "https://downloads.example/extracts/GrantsDBExtract20240921v2.zip", files[0].URL)

	assert.Equal(t, "GrantsDBExtract20240923v2.zip", files[1].FileName)
	assert.Equal(t, time.Date(2024, 9, 23, 4, 35, 0, 0, time.UTC), files[1].ExtractedDate)

	assert.Equal(t, "GrantsDBExtract20240922v2.zip", files[2].FileName)
	assert.Equal(t, "512 KB", files[2].Size)
	assert.EqualValues(t, 512*1024, files[2].SizeBytes)
	assert.Equal(t, time.Date(2024, 9, 22, 4, 36, 10, 0, time.UTC), files[2].ExtractedDate)
}

func TestParseListing_FallsBackToFileNameDate(t *testing.T) {
	page := `<ul><li><a href="GrantsDBExtract20250105v2.zip">latest extract</a></li></ul>`

	files, err := ParseListing(strings.NewReader(page), "https://downloads.example")
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), files[0].ExtractedDate)
	assert.Empty(t, files[0].Size)
}

func TestParseListing_LinksOutsideRows(t *testing.T) {
	page := `<div><a href="GrantsDBExtract20250101v1.zip">a</a> <a href="GrantsDBExtract20250102v1.zip">b</a></div>`

	files, err := ParseListing(strings.NewReader(page), "https://downloads.example")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "GrantsDBExtract20250101v1.zip", files[0].FileName)
	assert.Equal(t, "GrantsDBExtract20250102v1.zip", files[1].FileName)
}

func TestParseListing_NoFiles(t *testing.T) {
	files, err := ParseListing(strings.NewReader(`<html><body>Maintenance</body></html>`), "https://downloads.example")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestParseSize(t *testing.T) {
	size, n := parseSize("  1.5 GB ")
	assert.Equal(t, "1.5 GB", size)
	assert.EqualValues(t, 1610612736, n)

	size, n = parseSize("no size here")
	assert.Empty(t, size)
	assert.Zero(t, n)
}
