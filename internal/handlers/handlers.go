package handlers

import (
	"github.com/talisker77/media-viewer/internal/database"
	"github.com/talisker77/media-viewer/internal/filesystem"
	"github.com/talisker77/media-viewer/internal/scanner"
	"github.com/talisker77/media-viewer/internal/startup"
	"github.com/talisker77/media-viewer/internal/streaming"
)

type Handlers struct {
	db      *database.Database
	scanner *scanner.Scanner
	cfg     *startup.Config
	retry   filesystem.RetryConfig
	stream  streaming.TimeoutWriterConfig
}

func New(db *database.Database, sc *scanner.Scanner, cfg *startup.Config) *Handlers {
	return &Handlers{
		db:      db,
		scanner: sc,
		cfg:     cfg,
		retry:   filesystem.DefaultRetryConfig(),
		stream:  streaming.DefaultTimeoutWriterConfig(),
	}
}
