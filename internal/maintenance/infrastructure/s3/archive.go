package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	maintenance "smart-maintenance/internal/maintenance/domain"
)

// ObjectPutter is the subset of the S3 client used by the archive.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Archive writes completed reports to S3 as JSON objects.
type Archive struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewArchive constructs an archive around an existing client.
func NewArchive(client ObjectPutter, bucket, prefix string) (*Archive, error) {
	if client == nil {
		return nil, errors.New("s3 archive: nil client")
	}
	if bucket == "" {
		return nil, errors.New("s3 archive: empty bucket")
	}
	return &Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// NewArchiveFromRegion loads the default AWS config and builds an archive.
func NewArchiveFromRegion(ctx context.Context, region, bucket, prefix string) (*Archive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewArchive(awss3.NewFromConfig(cfg), bucket, prefix)
}

// Key returns the object key for a report: <prefix>/<device>/<yyyy>/<mm>/<dd>/<id>.json.
func (a *Archive) Key(report *maintenance.Report) string {
	day := report.GeneratedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, report.DeviceID, day, report.ID+".json")
}

// Save uploads the report.
func (a *Archive) Save(ctx context.Context, report *maintenance.Report) error {
	if a == nil || a.client == nil {
		return errors.New("s3 archive: not configured")
	}
	if report == nil || report.ID == "" {
		return errors.New("s3 archive: report id required")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("s3 archive: encode: %w", err)
	}
	_, err = a.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(report)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"device-id":  report.DeviceID,
			"risk-score": fmt.Sprintf("%.2f", report.Assessment.RiskScore),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload report to S3: %w", err)
	}
	return nil
}
