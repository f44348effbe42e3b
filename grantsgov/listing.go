package grantsgov

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"grants/dataloader/datalake/datasource"
	"grants/dataloader/datalake/model"
)

var sizePattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(bytes|[KMG]B|B)\b`)

// Extracted timestamps seen on the listing page. Zone abbreviations are
// captured but ignored; every entry on the page shares one zone.
var datePatterns = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{
		re: regexp.MustCompile(`\b([A-Z][a-z]{2,8}\.? \d{1,2}, \d{4}(?: \d{1,2}:\d{2}(?::\d{2})? ?[AaPp][Mm])?)(?: [A-Z]{2,5})?`),
		layouts: []string{
			"Jan 2, 2006 03:04:05 PM", "Jan 2, 2006 3:04:05 PM", "Jan 2, 2006 03:04 PM", "Jan 2, 2006 3:04 PM",
			"Jan 2, 2006 03:04:05PM", "Jan 2, 2006 3:04PM", "Jan 2, 2006",
			"January 2, 2006 03:04:05 PM", "January 2, 2006 3:04 PM", "January 2, 2006",
		},
	},
	{
		re:      regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}(?:[ T]\d{2}:\d{2}(?::\d{2})?)?)`),
		layouts: []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"},
	},
	{
		re:      regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4}(?: \d{1,2}:\d{2}(?::\d{2})? ?[AaPp][Mm])?)`),
		layouts: []string{"01/02/2006 03:04:05 PM", "1/2/2006 3:04:05 PM", "01/02/2006 03:04 PM", "1/2/2006 3:04 PM", "01/02/2006", "1/2/2006"},
	},
}

var errListingTokenize = errors.New("error tokenizing listing html")

func ListingTokenizeError(baseErr error) error {
	return fmt.Errorf("%w, %w", errListingTokenize, baseErr)
}

// listingRow accumulates the text and link targets of one table row or
// list item.
type listingRow struct {
	text  strings.Builder
	hrefs []string
}

func (r *listingRow) content() string {
	return r.text.String() + " " + strings.Join(r.hrefs, " ")
}

// ParseListing extracts the advertised extract archives from the listing
// page HTML. Download URLs are built from downloadBase.
func ParseListing(r io.Reader, downloadBase string) ([]model.ExtractFile, error) {
	tokenizer := html.NewTokenizer(r)
	collector := newFileCollector(downloadBase)

	var row *listingRow
	var page listingRow

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				if row != nil {
					collector.addRow(row.content())
				}
				if len(collector.files) == 0 {
					// No row carried a file; fall back to the page as a whole.
					collector.addLinks(page.content())
				}
				return collector.files, nil
			}
			return nil, ListingTokenizeError(tokenizer.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "tr", "li":
				if row != nil {
					collector.addRow(row.content())
				}
				row = &listingRow{}
			case "a":
				for _, attr := range token.Attr {
					if attr.Key == "href" {
						page.hrefs = append(page.hrefs, attr.Val)
						if row != nil {
							row.hrefs = append(row.hrefs, attr.Val)
						}
					}
				}
			case "td", "th", "br", "div", "span":
				if row != nil {
					row.text.WriteByte(' ')
				}
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "tr" || tag == "li") && row != nil {
				collector.addRow(row.content())
				row = nil
			}
		case html.TextToken:
			text := string(tokenizer.Text())
			page.text.WriteString(text)
			page.text.WriteByte(' ')
			if row != nil {
				row.text.WriteString(text)
			}
		}
	}
}

// fileCollector dedups extract files by name, merging details found in
// later rows.
type fileCollector struct {
	downloadBase string
	extractor    datasource.InfoExtractor
	files        []model.ExtractFile
	index        map[string]int
}

func newFileCollector(downloadBase string) *fileCollector {
	return &fileCollector{
		downloadBase: strings.TrimRight(downloadBase, "/"),
		extractor:    datasource.NewGrantsExtractor(),
		index:        make(map[string]int),
	}
}

// addRow records the file named in a row together with the size and
// timestamp found alongside it.
func (c *fileCollector) addRow(content string) {
	names := uniqueNames(content)
	if len(names) == 0 {
		return
	}

	size, sizeBytes := parseSize(content)
	extracted, hasDate := parseExtractedDate(content)
	for _, name := range names {
		c.add(name, size, sizeBytes, extracted, hasDate)
	}
}

// addLinks records every file named in content without row details.
func (c *fileCollector) addLinks(content string) {
	for _, name := range uniqueNames(content) {
		c.add(name, "", 0, time.Time{}, false)
	}
}

func (c *fileCollector) add(name, size string, sizeBytes int64, extracted time.Time, hasDate bool) {
	if !hasDate {
		info, err := c.extractor.ExtractInfo(name)
		if err == nil {
			extracted = info.ExtractDate
		}
	}

	if i, ok := c.index[name]; ok {
		existing := &c.files[i]
		if existing.Size == "" && size != "" {
			existing.Size, existing.SizeBytes = size, sizeBytes
		}
		if hasDate && existing.ExtractedDate.IsZero() {
			existing.ExtractedDate = extracted
		}
		return
	}

	c.index[name] = len(c.files)
	c.files = append(c.files, model.ExtractFile{
		FileName:      name,
		Size:          size,
		SizeBytes:     sizeBytes,
		ExtractedDate: extracted,
		URL:           c.downloadBase + "/" + name,
	})
}

func uniqueNames(content string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, match := range datasource.ExtractFilePattern.FindAllString(content, -1) {
		if !seen[match] {
			seen[match] = true
			names = append(names, match)
		}
	}
	return names
}

func parseSize(content string) (string, int64) {
	m := sizePattern.FindStringSubmatch(content)
	if m == nil {
		return "", 0
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", 0
	}

	multiplier := float64(1)
	switch strings.ToUpper(m[2]) {
	case "KB":
		multiplier = 1 << 10
	case "MB":
		multiplier = 1 << 20
	case "GB":
		multiplier = 1 << 30
	}

	return strings.TrimSpace(m[0]), int64(value * multiplier)
}

func parseExtractedDate(content string) (time.Time, bool) {
	for _, candidate := range datePatterns {
		for _, m := range candidate.re.FindAllStringSubmatch(content, -1) {
			for _, layout := range candidate.layouts {
				if t, err := time.ParseInLocation(layout, m[1], time.UTC); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}
