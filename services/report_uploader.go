// services/report_uploader.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2ReportUploader archives batch run summaries to an R2 bucket so ops
// can audit past settlement runs without database access. Constructed
// explicitly and injected — never a package-global client.
type R2ReportUploader struct {
	client *s3.Client
	bucket string
}

// NewR2ReportUploader builds the uploader from environment config.
// Returns (nil, nil) when the R2 env is absent: the archive is optional
// and its absence only costs the audit trail.
func NewR2ReportUploader(ctx context.Context) (*R2ReportUploader, error) {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	bucket := os.Getenv("R2_REPORTS_BUCKET")

	if accountID == "" || accessKeyID == "" || accessKeySecret == "" || bucket == "" {
		return nil, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	return &R2ReportUploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// UploadRunReport writes one JSON document per run, keyed by start time.
func (u *R2ReportUploader) UploadRunReport(ctx context.Context, summary *BatchSummary) error {
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	key := fmt.Sprintf("settlement-runs/%s.json", summary.StartedAt.UTC().Format(time.RFC3339))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload run report to R2: %w", err)
	}
	return nil
}
