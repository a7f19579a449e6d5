package azure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBlobStorageClient(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name          string
		accountName   string
		accountKey    string
		containerName string
		wantErr       bool
	}{
		{"valid configuration", "testaccount", "dGVzdGtleQ==", "health-reports", false},
		{"missing account name", "", "dGVzdGtleQ==", "health-reports", true},
		{"missing account key", "testaccount", "", "health-reports", true},
		{"missing container name", "testaccount", "dGVzdGtleQ==", "", true},
		{"invalid account key format", "testaccount", "invalid-key-format", "health-reports", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewBlobStorageClient(tt.accountName, tt.accountKey, tt.containerName, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.containerName, client.containerName)
		})
	}
}

func TestNewBlobStorageClientFromConnectionString(t *testing.T) {
	azurite := "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
		"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
		"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

	client, err := NewBlobStorageClientFromConnectionString(azurite, "health-reports", zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewBlobStorageClientFromConnectionString("", "health-reports", zap.NewNop())
	assert.Error(t, err)
}

func TestBlobStorageClient_UploadReportRejectsBadNames(t *testing.T) {
	client, err := NewBlobStorageClient("testaccount", "dGVzdGtleQ==", "health-reports", zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.UploadReport(ctx, "", "report.pdf", []byte("%PDF"))
	assert.Error(t, err)
	_, err = client.UploadReport(ctx, "user-1", "../escape.pdf", []byte("%PDF"))
	assert.Error(t, err)
	_, err = client.DownloadReport(ctx, "")
	assert.Error(t, err)
}

func TestMockBlobStorageClient_RoundTrip(t *testing.T) {
	store := NewMockBlobStorageClient(zap.NewNop())
	ctx := context.Background()

	data := []byte("%PDF-1.3 report")
	name, err := store.UploadReport(ctx, "user-1", "2026-03.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, "reports/user-1/2026-03.pdf", name)

	data[0] = 'X'
	got, err := store.DownloadReport(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 report", string(got), "stored bytes are isolated from the caller")

	assert.Equal(t, []string{"reports/user-1/2026-03.pdf"}, store.ListBlobs())

	_, err = store.DownloadReport(ctx, "reports/missing.pdf")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
