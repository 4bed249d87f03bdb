// Package backup copies saved data files to S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// ChecksumKey is the object metadata key holding the hex BLAKE2b-256 digest.
const ChecksumKey = "blake2b-256"

// Config holds explicit construction parameters.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string // optional; enables a custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	PathStyle       bool
}

// PutObjectAPI is the slice of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads one set of data files per backup under
// <prefix>/<UTC timestamp>-<session>/.
type S3Uploader struct {
	client  PutObjectAPI
	bucket  string
	prefix  string
	session string
	log     logrus.FieldLogger
	now     func() time.Time
}

// New builds an uploader backed by a real S3 client.
func New(ctx context.Context, cfg Config, session string, log logrus.FieldLogger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, session, log), nil
}

// NewWithClient wires an uploader around any PutObject implementation.
func NewWithClient(client PutObjectAPI, bucket, prefix, session string, log logrus.FieldLogger) *S3Uploader {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		session: session,
		log:     log,
		now:     time.Now,
	}
}

// Checksum returns the hex BLAKE2b-256 digest of b.
func Checksum(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func contentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return "text/csv"
	}
	return "application/octet-stream"
}

// Upload copies each named file from dir. Files that do not exist are
// skipped. It returns the object keys written.
func (u *S3Uploader) Upload(ctx context.Context, dir string, files []string) ([]string, error) {
	stamp := u.now().UTC().Format("20060102T150405Z")
	base := path.Join(u.prefix, stamp+"-"+u.session)

	var keys []string
	var errs []error
	for _, name := range files {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", name, err))
			continue
		}
		key := path.Join(base, name)
		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType(name)),
			Metadata:    map[string]string{ChecksumKey: Checksum(body)},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("put %s: %w", key, err))
			continue
		}
		keys = append(keys, key)
	}
	u.log.WithFields(logrus.Fields{"bucket": u.bucket, "prefix": base, "count": len(keys)}).Info("backup uploaded")
	return keys, errors.Join(errs...)
}
