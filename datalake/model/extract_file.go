package model

import "time"

// ExtractFile is one downloadable archive advertised by the listing page.
type ExtractFile struct {
	FileName      string    `json:"fileName"`
	Size          string    `json:"size,omitempty"`
	SizeBytes     int64     `json:"sizeBytes,omitempty"`
	ExtractedDate time.Time `json:"extractedDate"`
	URL           string    `json:"url,omitempty"`
}
