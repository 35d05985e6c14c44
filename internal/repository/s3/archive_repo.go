package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/domain"
)

// ArchiveRepository writes an immutable copy of every filed regulatory
// report to S3. The archived object is the filing of record for retention.
type ArchiveRepository struct {
	client *s3.Client
	bucket string
}

// NewArchiveRepository creates a new S3 archive repository
func NewArchiveRepository(ctx context.Context, cfg appConfig.S3Config) (*ArchiveRepository, error) {
	// Custom resolver for MinIO/Localstack support
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		// returning EndpointNotFoundError will allow the service to fallback to it's default resolution
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO
	})

	return &ArchiveRepository{
		client: client,
		bucket: cfg.ReportsBucket,
	}, nil
}

// ArchiveFiledReport uploads the filed report keyed by organization, report
// type and filing identifier. Keys never collide because filing identifiers
// are unique, so a re-upload of the same filing is a no-op overwrite with
// identical content.
func (r *ArchiveRepository) ArchiveFiledReport(ctx context.Context, report *domain.RegulatoryReport) error {
	if report.FilingIdentifier == "" {
		return domain.NewError(domain.KindInvalidInput, "report %s has no filing identifier", report.ReportID)
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report for archive: %w", err)
	}

	filedAt := report.FiledAt.UTC()
	key := fmt.Sprintf("%s/%s/%d/%02d/%s.json",
		report.OrganizationID, report.ReportType, filedAt.Year(), filedAt.Month(), report.FilingIdentifier)

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload report to s3: %w", err)
	}

	return nil
}
