package azure

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MockBlobStorageClient is an in-memory ReportStorage. It backs local runs
// without Azure credentials and tests.
type MockBlobStorageClient struct {
	storage map[string][]byte
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMockBlobStorageClient creates an empty in-memory store
func NewMockBlobStorageClient(logger *zap.Logger) *MockBlobStorageClient {
	return &MockBlobStorageClient{
		storage: make(map[string][]byte),
		logger:  logger,
	}
}

// UploadReport stores a copy of data
func (c *MockBlobStorageClient) UploadReport(_ context.Context, userID, filename string, data []byte) (string, error) {
	blobName, err := reportBlobName(userID, filename)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.storage[blobName] = bytes.Clone(data)
	c.mu.Unlock()

	c.logger.Debug("mock: report uploaded",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)
	return blobName, nil
}

// DownloadReport returns a copy of a stored report
func (c *MockBlobStorageClient) DownloadReport(_ context.Context, blobName string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.storage[blobName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, blobName)
	}
	return bytes.Clone(data), nil
}

// ListBlobs returns all blob names in lexical order
func (c *MockBlobStorageClient) ListBlobs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blobs := make([]string, 0, len(c.storage))
	for name := range c.storage {
		blobs = append(blobs, name)
	}
	sort.Strings(blobs)
	return blobs
}
