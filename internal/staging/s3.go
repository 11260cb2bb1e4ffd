package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/parallelworks/gaussian-workflow-demo/internal/config"
	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// DefaultAWSRegion is the fallback region for AWS S3 when none resolves.
const DefaultAWSRegion = "us-east-1"

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Stager transfers staged files to and from s3://bucket/key URLs.
// The AWS client is created on first use.
type S3Stager struct {
	cfg config.S3Config

	once   sync.Once
	client s3API
	err    error
}

// NewS3Stager creates an S3 stager. Credentials follow the AWS SDK default
// chain unless explicit keys are configured.
func NewS3Stager(cfg config.S3Config) *S3Stager {
	return &S3Stager{cfg: cfg}
}

func (s *S3Stager) api(ctx context.Context) (s3API, error) {
	s.once.Do(func() {
		if s.client != nil {
			return
		}
		awsCfg, err := loadAWSConfig(ctx, s.cfg)
		if err != nil {
			s.err = err
			return
		}
		s3Opts := []func(*s3.Options){
			func(o *s3.Options) {
				if s.cfg.ForcePathStyle {
					o.UsePathStyle = true
				}
			},
		}
		if s.cfg.Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			})
		}
		s.client = s3.NewFromConfig(awsCfg, s3Opts...)
	})
	return s.client, s.err
}

func loadAWSConfig(ctx context.Context, cfg config.S3Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = DefaultAWSRegion
	}
	return awsCfg, nil
}

// StageIn downloads the object at the URL, or every object under it, to the local path.
func (s *S3Stager) StageIn(ctx context.Context, f model.StagedFile) error {
	bucket, key, err := parseS3URL(f.URL)
	if err != nil {
		return &StagingError{URL: f.URL, Op: "in", Err: err}
	}
	client, err := s.api(ctx)
	if err != nil {
		return &StagingError{URL: f.URL, Op: "in", Err: err}
	}

	prefix := strings.TrimSuffix(key, "/")
	found := 0
	pager := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return &StagingError{URL: f.URL, Op: "in", Err: wrapS3Error(err)}
		}
		for _, obj := range page.Contents {
			objKey := aws.ToString(obj.Key)
			var dst string
			switch {
			case objKey == prefix:
				dst = f.LocalPath
			case strings.HasPrefix(objKey, prefix+"/"):
				dst = filepath.Join(f.LocalPath, filepath.FromSlash(strings.TrimPrefix(objKey, prefix+"/")))
			default:
				continue
			}
			if err := s.download(ctx, client, bucket, objKey, dst); err != nil {
				return &StagingError{URL: f.URL, Op: "in", Err: err}
			}
			found++
		}
	}

	if found == 0 {
		return &StagingError{URL: f.URL, Op: "in", Err: ErrNotFound}
	}
	return nil
}

// StageOut uploads the local file, or every file under the local directory, to the URL.
func (s *S3Stager) StageOut(ctx context.Context, f model.StagedFile) error {
	bucket, key, err := parseS3URL(f.URL)
	if err != nil {
		return &StagingError{URL: f.URL, Op: "out", Err: err}
	}
	info, err := os.Stat(f.LocalPath)
	if os.IsNotExist(err) {
		return &StagingError{URL: f.URL, Op: "out", Err: fmt.Errorf("%s: %w", f.LocalPath, ErrNotFound)}
	}
	if err != nil {
		return &StagingError{URL: f.URL, Op: "out", Err: err}
	}
	client, err := s.api(ctx)
	if err != nil {
		return &StagingError{URL: f.URL, Op: "out", Err: err}
	}

	prefix := strings.TrimSuffix(key, "/")
	if !info.IsDir() {
		if err := s.upload(ctx, client, bucket, prefix, f.LocalPath); err != nil {
			return &StagingError{URL: f.URL, Op: "out", Err: err}
		}
		return nil
	}

	err = filepath.WalkDir(f.LocalPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(f.LocalPath, p)
		if err != nil {
			return err
		}
		return s.upload(ctx, client, bucket, path.Join(prefix, filepath.ToSlash(rel)), p)
	})
	if err != nil {
		return &StagingError{URL: f.URL, Op: "out", Err: err}
	}
	return nil
}

func (s *S3Stager) upload(ctx context.Context, client s3API, bucket, key, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: &size,
	})
	if err != nil {
		return wrapS3Error(err)
	}
	return nil
}

func (s *S3Stager) download(ctx context.Context, client s3API, bucket, key, dst string) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrapS3Error(err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, out.Body); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func parseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("expected s3://bucket/key")
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// wrapS3Error maps missing-object errors onto ErrNotFound.
func wrapS3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return fmt.Errorf("s3 %s: %w", apiErr.ErrorCode(), err)
	}
	return err
}
