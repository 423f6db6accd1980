package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ExportKey is the bucket object name for an export taken at t.
func ExportKey(t time.Time) string {
	return fmt.Sprintf("exports/export_%s.json", t.UTC().Format("20060102_150405"))
}

// UploadExport writes dump as indented JSON to the bucket and returns the key.
func UploadExport(ctx context.Context, bucket BucketService, dump *ExportDump, now time.Time) (string, error) {
	payload, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	key := ExportKey(now)
	if err := bucket.UploadFile(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		return "", err
	}
	return key, nil
}
