package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads videos to a bucket under "<folder>/<uuid>.mp4".
type S3 struct {
	api           s3API
	bucket        string
	region        string
	publicBaseURL string
	folder        string
	logger        infra.Logger
}

// NewS3 loads AWS credentials from the default chain.
func NewS3(ctx context.Context, opts Options) (*S3, error) {
	if strings.TrimSpace(opts.S3Bucket) == "" {
		return nil, fmt.Errorf("%w: S3_BUCKET is required", domain.ErrConfiguration)
	}
	var loadOpts []func(*config.LoadOptions) error
	if opts.AWSRegion != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.AWSRegion))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", domain.ErrConfiguration, err)
	}
	return newS3(s3.NewFromConfig(cfg), cfg.Region, opts), nil
}

func newS3(api s3API, region string, opts Options) *S3 {
	return &S3{
		api:           api,
		bucket:        strings.TrimSpace(opts.S3Bucket),
		region:        region,
		publicBaseURL: strings.TrimRight(opts.S3PublicBaseURL, "/"),
		folder:        folderOrDefault(opts.Folder),
		logger:        infra.Component(loggerOrNop(opts.Logger), "s3"),
	}
}

func (s *S3) Upload(ctx context.Context, localPath string) (UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: open %s: %v", domain.ErrUpload, localPath, err)
	}
	defer f.Close()

	key := objectKey(s.folder, localPath)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: s3 put %s: %v", domain.ErrUpload, key, err)
	}
	f.Close()
	finish(s.logger, localPath)
	s.logger.Info().Str("key", key).Msg("storage: uploaded video")
	return UploadResult{URL: s.publicURL(key), ID: key}, nil
}

func (s *S3) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

var _ Uploader = (*S3)(nil)
