package datalake

import (
	"context"

	"grants/dataloader/datalake/model"
)

// Source lists and downloads extract archives.
type Source interface {
	ListFiles(ctx context.Context) ([]model.ExtractFile, error)
	Download(ctx context.Context, fileName string) ([]byte, error)
}
