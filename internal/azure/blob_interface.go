package azure

import (
	"context"
	"errors"
)

// ErrReportNotFound is returned when no blob exists under the requested name
var ErrReportNotFound = errors.New("report not found")

// ReportStorage is the blob store used for generated reports
type ReportStorage interface {
	UploadReport(ctx context.Context, userID, filename string, data []byte) (string, error)
	DownloadReport(ctx context.Context, blobName string) ([]byte, error)
}

var (
	_ ReportStorage = (*BlobStorageClient)(nil)
	_ ReportStorage = (*MockBlobStorageClient)(nil)
)
