package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/logging"
	"backend-navi/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	provider         = "s3"
	keyPrefix        = "uploads/"
	DefaultSignedTTL = time.Hour
)

type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// S3 stores blobs under uploads/<unix-ms>-<name>.
type S3 struct {
	api       ObjectAPI
	presigner Presigner
	bucket    string
	baseURL   string
	timeout   time.Duration
	now       func() time.Time
	// nonce keeps keys distinct when a batch carries files with the same name
	nonce func() string
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(client, s3.NewPresignClient(client), cfg), nil
}

func newS3(api ObjectAPI, presigner Presigner, cfg S3Config) *S3 {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return &S3{
		api:       api,
		presigner: presigner,
		bucket:    cfg.Bucket,
		baseURL:   base,
		timeout:   timeout,
		now:       time.Now,
		nonce:     func() string { return uuid.NewString()[:8] },
	}
}

func (s *S3) Upload(ctx context.Context, f File) (Object, error) {
	key := fmt.Sprintf("%s%d-%s-%s", keyPrefix, s.now().UnixMilli(), s.nonce(), sanitizeName(f.Name))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(f.Body),
		ContentType:   aws.String(f.ContentType),
		ContentLength: aws.Int64(int64(len(f.Body))),
	})
	metrics.ObserveExternal(provider, "put_object", start, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("s3 upload failed")
		return Object{}, apperr.Integration("file upload", err)
	}
	return Object{Key: key, URL: s.baseURL + "/" + key, ContentType: f.ContentType, Size: int64(len(f.Body))}, nil
}

// UploadMany uploads concurrently. If any upload fails the ones that
// succeeded are deleted and the whole batch fails.
func (s *S3) UploadMany(ctx context.Context, files []File) ([]Object, error) {
	out := make([]Object, len(files))
	var mu sync.Mutex
	var done []string

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			obj, err := s.Upload(gctx, f)
			if err != nil {
				return err
			}
			out[i] = obj
			mu.Lock()
			done = append(done, obj.Key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, key := range done {
			if derr := s.deleteKey(context.WithoutCancel(ctx), key); derr != nil {
				logging.Ctx(ctx).Warn().Err(derr).Str("key", key).Msg("cleanup after failed batch upload")
			}
		}
		return nil, err
	}
	return out, nil
}

// Delete removes the object addressed by a URL previously returned by Upload.
func (s *S3) Delete(ctx context.Context, objectURL string) error {
	key, err := s.KeyFromURL(objectURL)
	if err != nil {
		return err
	}
	return s.deleteKey(ctx, key)
}

func (s *S3) deleteKey(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.ObserveExternal(provider, "delete_object", start, err)
	if err != nil {
		return apperr.Integration("file deletion", err)
	}
	return nil
}

// SignedURL returns a time-limited GET URL. ttl <= 0 uses DefaultSignedTTL.
func (s *S3) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignedTTL
	}
	start := time.Now()
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	metrics.ObserveExternal(provider, "presign_get", start, err)
	if err != nil {
		return "", apperr.Integration("signed url", err)
	}
	return req.URL, nil
}

func (s *S3) KeyFromURL(objectURL string) (string, error) {
	u, err := url.Parse(objectURL)
	if err != nil || !strings.HasPrefix(objectURL, s.baseURL+"/") {
		return "", apperr.Validation("invalid request", apperr.FieldError{Field: "url", Message: "url does not reference this bucket"})
	}
	key := strings.TrimPrefix(objectURL, s.baseURL+"/")
	if u.RawQuery != "" {
		key = strings.SplitN(key, "?", 2)[0]
	}
	if !strings.HasPrefix(key, keyPrefix) {
		return "", apperr.Validation("invalid request", apperr.FieldError{Field: "url", Message: "url does not reference an upload"})
	}
	return key, nil
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}

var errNoStore = errors.New("object storage is not configured")
