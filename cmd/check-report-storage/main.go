// Command check-report-storage verifies Azure Blob Storage access by uploading
// a sample adherence report and reading it back.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/azure"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/pdf"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	connectionString := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	accountName := os.Getenv("AZURE_STORAGE_ACCOUNT_NAME")
	accountKey := os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
	container := os.Getenv("AZURE_STORAGE_REPORT_CONTAINER")
	if container == "" {
		container = "health-reports"
	}

	var client *azure.BlobStorageClient
	switch {
	case connectionString != "":
		client, err = azure.NewBlobStorageClientFromConnectionString(connectionString, container, logger)
	case accountName != "" && accountKey != "":
		client, err = azure.NewBlobStorageClient(accountName, accountKey, container, logger)
	default:
		logger.Fatal("Missing Azure Storage credentials. Set AZURE_STORAGE_CONNECTION_STRING or AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY")
	}
	if err != nil {
		logger.Fatal("Failed to create blob storage client", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.EnsureContainer(ctx); err != nil {
		logger.Fatal("Failed to ensure report container", zap.Error(err))
	}

	data, err := samplePDF(logger)
	if err != nil {
		logger.Fatal("Failed to generate sample report", zap.Error(err))
	}

	userID := uuid.NewString()
	blobName, err := client.UploadReport(ctx, userID, "storage-check.pdf", data)
	if err != nil {
		logger.Fatal("Upload failed", zap.Error(err))
	}
	logger.Info("uploaded sample report", zap.String("blob_name", blobName), zap.Int("size_bytes", len(data)))

	downloaded, err := client.DownloadReport(ctx, blobName)
	if err != nil {
		logger.Fatal("Download failed", zap.Error(err))
	}
	if !bytes.Equal(data, downloaded) {
		logger.Fatal("Downloaded report does not match upload",
			zap.Int("uploaded_bytes", len(data)),
			zap.Int("downloaded_bytes", len(downloaded)),
		)
	}

	logger.Info("report storage check passed", zap.String("container", container))
}

func samplePDF(logger *zap.Logger) ([]byte, error) {
	now := time.Now()
	systolic, diastolic := 124, 82
	return pdf.NewPDFGenerator(logger).Generate(&pdf.ReportData{
		UserName:    "storage-check",
		Conditions:  []model.ChronicCondition{model.ConditionBP},
		Month:       now,
		GeneratedAt: now,
		Adherence:   pdf.AdherenceFigures{Coins: model.InitialCoins, AdherenceRate: 100},
		Vitals: []model.VitalReading{
			{ID: uuid.NewString(), Date: now, Systolic: &systolic, Diastolic: &diastolic, CreatedAt: now},
		},
	})
}
