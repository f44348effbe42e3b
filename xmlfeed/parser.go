package xmlfeed

import (
	"context"
	"io"

	"grants/dataloader/datalake/model"
)

// ParseResult is the outcome of parsing one extract.
type ParseResult struct {
	Grants     []model.Grant
	Total      int64
	Invalid    int64
	Ineligible int64
}

// Parser defines the interface for parsing extract XML.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) (*ParseResult, error)
}
