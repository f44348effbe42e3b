package datasource

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SourceInfo holds what can be learned from an extract file name.
type SourceInfo struct {
	DataSource  string
	ExtractDate time.Time
	Version     int
}

// InfoExtractor defines the interface for extracting source information from a filename.
type InfoExtractor interface {
	ExtractInfo(filename string) (*SourceInfo, error)
}

// ErrUnableToExtractInfo is returned when the extractor cannot parse the filename.
var ErrUnableToExtractInfo = errors.New("unable to extract source info from filename")

// ExtractFilePattern matches grants.gov extract archive names, e.g.
// GrantsDBExtract20240923v2.zip.
var ExtractFilePattern = regexp.MustCompile(`(?i)GrantsDBExtract(\d{8})v(\d+)\.zip`)

// GrantsExtractor extracts info for grants.gov extract files.
type GrantsExtractor struct{}

// NewGrantsExtractor creates a new GrantsExtractor.
func NewGrantsExtractor() *GrantsExtractor {
	return &GrantsExtractor{}
}

// ExtractInfo extracts the extract date and version from the file name.
func (e *GrantsExtractor) ExtractInfo(filename string) (*SourceInfo, error) {
	matches := ExtractFilePattern.FindStringSubmatch(filename)
	if len(matches) != 3 {
		return nil, ErrUnableToExtractInfo
	}

	extractDate, err := time.Parse("20060102", matches[1])
	if err != nil {
		return nil, ErrUnableToExtractInfo
	}

	version, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, ErrUnableToExtractInfo
	}

	dataSource := GrantsGov
	if strings.Contains(strings.ToLower(filename), "synthetic") {
		dataSource = Synthetic
	}

	return &SourceInfo{
		DataSource:  string(dataSource),
		ExtractDate: extractDate,
		Version:     version,
	}, nil
}
