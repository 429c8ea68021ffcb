package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/talkboard/internal/common"
)

// R2Config describes an S3-compatible bucket (Cloudflare R2, MinIO, AWS).
type R2Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	Endpoint        string
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// R2Store keeps assets in a bucket and hands out presigned GET URLs.
type R2Store struct {
	objects objectAPI
	presign presignAPI
	bucket  string
	cache   URLCache
	now     func() time.Time
}

// NewR2Store builds the S3 clients from cfg. A nil cache falls back to a
// MemoryURLCache.
func NewR2Store(ctx context.Context, cfg R2Config, cache URLCache) (*R2Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", common.ErrStorage, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return newR2Store(client, s3.NewPresignClient(client), cfg.Bucket, cache), nil
}

func newR2Store(objects objectAPI, presign presignAPI, bucket string, cache URLCache) *R2Store {
	if cache == nil {
		cache = NewMemoryURLCache()
	}
	return &R2Store{objects: objects, presign: presign, bucket: bucket, cache: cache, now: time.Now}
}

func (s *R2Store) Upload(ctx context.Context, content []byte, originalName string) (string, error) {
	key, err := NewKey(originalName)
	if err != nil {
		return "", err
	}
	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType(key, content)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", common.ErrStorage, key, err)
	}
	return key, nil
}

// Delete addresses the object by the base name of key, so keys recorded
// with a path prefix still resolve. The cached presigned URL is dropped
// unless the backend fails.
func (s *R2Store) Delete(ctx context.Context, key string) (bool, error) {
	name := path.Base(key)
	if err := validKey(name); err != nil {
		return false, err
	}
	deleted, err := s.deleteObject(ctx, name)
	if err != nil {
		return false, err
	}
	s.cache.Forget(ctx, key)
	if name != key {
		s.cache.Forget(ctx, name)
	}
	return deleted, nil
}

func (s *R2Store) deleteObject(ctx context.Context, name string) (bool, error) {
	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(name)})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head %s: %v", common.ErrStorage, name, err)
	}

	if _, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(name)}); err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", common.ErrStorage, name, err)
	}
	return true, nil
}

// URL reuses a cached presigned URL while it keeps at least five sixths of
// ttl of validity (50 minutes for the default hour), otherwise signs anew.
func (s *R2Store) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	now := s.now()
	minRemaining := ttl - ttl/6

	if url, exp, ok := s.cache.Get(ctx, key); ok && exp.After(now.Add(minRemaining)) {
		return url, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", common.ErrStorage, key, err)
	}

	s.cache.Set(ctx, key, req.URL, now.Add(ttl))
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func contentType(key string, content []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return http.DetectContentType(content)
}
