package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aquatracking/aquatracking/internal/domain"
)

type s3Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Client archives purged rollups to the data lake bucket.
type S3Client struct {
	svc    s3Putter
	bucket string
}

// NewS3Client creates a new S3 client instance
func NewS3Client(ctx context.Context, region, bucket string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &S3Client{
		svc:    s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// ArchiveKey is the object key of an archived rollup,
// partitioned by home and month for cheap prefix listing.
func ArchiveKey(d *domain.DailyConsumption) string {
	month := d.Date
	if len(month) >= 7 {
		month = month[:7]
	}
	return fmt.Sprintf("daily-consumption/%s/%s/%s.json", d.HomeID, month, d.Date)
}

// ArchiveDaily stores the rollup as JSON before it is purged.
func (c *S3Client) ArchiveDaily(ctx context.Context, d *domain.DailyConsumption) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal rollup: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(ArchiveKey(d)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"archived-at": time.Now().UTC().Format(time.RFC3339),
		},
	}

	if _, err := c.svc.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}
