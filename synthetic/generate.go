package synthetic

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"grants/dataloader/datalake/model"
)

// ListingFileName is the page GenerateSyntheticData writes next to the
// archive, in the same layout as the grants.gov listing.
const ListingFileName = "index.html"

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head><title>XML Extract</title></head>
<body>
<h1>XML Extract</h1>
<table>
  <tr><th>File Name</th><th>Size</th><th>Extracted Date/Time</th></tr>
{{- range .}}
  <tr>
    <td><a href="{{.FileName}}">{{.FileName}}</a></td>
    <td>{{.Size}}</td>
    <td>{{.ExtractedDate.Format "Jan 2, 2006 03:04:05 PM"}}</td>
  </tr>
{{- end}}
</table>
</body>
</html>
`))

// WriteListing renders files as a listing page.
func WriteListing(w io.Writer, files []model.ExtractFile) error {
	if err := listingTemplate.Execute(w, files); err != nil {
		return fmt.Errorf("failed to render listing: %w", err)
	}
	return nil
}

// FormatSize renders a byte count the way the listing page does.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// GenerateSyntheticData writes a synthetic extract archive for today and a
// matching index.html into dir. Serving dir over HTTP gives the job a
// local listing and download base.
func GenerateSyntheticData(rows int, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	data, err := BuildExtract(rows, now)
	if err != nil {
		return err
	}

	fileName := ExtractFileName(now)
	archivePath := filepath.Join(dir, fileName)
	if err := os.WriteFile(archivePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file '%s': %w", archivePath, err)
	}

	listingPath := filepath.Join(dir, ListingFileName)
	file, err := os.Create(listingPath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", listingPath, err)
	}
	defer file.Close()

	files := []model.ExtractFile{{
		FileName:      fileName,
		Size:          FormatSize(int64(len(data))),
		SizeBytes:     int64(len(data)),
		ExtractedDate: now,
	}}
	return WriteListing(file, files)
}
