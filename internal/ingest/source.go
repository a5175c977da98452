package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileSource resolves an uploaded file reference to a readable stream. The
// pipeline only ever reads the stream once, front to back.
type FileSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name returns the original filename, used to pick the parser
	// (delimited text vs workbook).
	Name() string
}

// LocalFile is a FileSource backed by a path on disk.
type LocalFile struct {
	Path string
}

func (l LocalFile) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.Path, err)
	}
	return f, nil
}

func (l LocalFile) Name() string { return filepath.Base(l.Path) }

// S3Object is a FileSource backed by an object in S3, where the upload
// layer stages incoming files.
type S3Object struct {
	Client *s3.Client
	Bucket string
	Key    string
}

func (o S3Object) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := o.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &o.Bucket,
		Key:    &o.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", o.Bucket, o.Key, err)
	}
	return out.Body, nil
}

func (o S3Object) Name() string { return filepath.Base(o.Key) }

// NewS3Client builds an S3 client from the default credential chain, with an
// optional shared-config profile for local development.
func NewS3Client(ctx context.Context, region, profile string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// IsWorkbook reports whether a filename refers to a spreadsheet workbook
// rather than delimited text.
func IsWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx":
		return true
	default:
		return false
	}
}
