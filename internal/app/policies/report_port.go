package policies

import (
	"context"
	"io"
)

// ReportStore publishes generated reports and returns where they can be fetched.
type ReportStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (publicURL string, err error)
}
