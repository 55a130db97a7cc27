package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ncecere/voice_gateway/internal/config"
)

type s3Store struct {
	client *s3.Client
	bucket string
	region string
}

func newS3Store(ctx context.Context, cfg config.StorageConfig, awsCfg config.AWSConfig) (*s3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage.bucket must be provided for s3 storage")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(awsCfg.Region),
	}
	if awsCfg.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(awsCfg.Profile))
	}
	if awsCfg.AccessKeyID != "" && awsCfg.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(awsCfg.AccessKeyID, awsCfg.SecretAccessKey, awsCfg.SessionToken)
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(provider))
	}

	base, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if base.Region == "" {
		base.Region = awsCfg.Region
	}

	client := s3.NewFromConfig(base, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Store{client: client, bucket: cfg.Bucket, region: base.Region}, nil
}

func (s *s3Store) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        body,
		ContentType: aws.String(opts.ContentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return ObjectInfo{}, fmt.Errorf("s3 upload %q: %w", key, err)
	}
	return ObjectInfo{Key: key, URL: s.URL(key), ContentType: opts.ContentType}, nil
}

func (s *s3Store) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var nf *s3types.NoSuchKey
		if strings.Contains(err.Error(), "NoSuchKey") || errors.As(err, &nf) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{Key: key, URL: s.URL(key), ContentType: aws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return out.Body, info, nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err
}

// URL returns the virtual-hosted public URL for a key.
func (s *s3Store) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, strings.TrimPrefix(key, "/"))
}
