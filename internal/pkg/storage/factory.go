package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverS3    = "s3"
	DriverGCS   = "gcs"
	DriverMinIO = "minio"
)

var ErrUnknownDriver = errors.New("storage: unknown driver")

// FactoryOptions carries every driver's settings; only the selected one is
// read. Bucket fills in any driver bucket left empty.
type FactoryOptions struct {
	Bucket string
	S3     S3Options
	GCS    GCSOptions
	MinIO  MinIOOptions
}

func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverS3:
		opts.S3.Bucket = cmp.Or(opts.S3.Bucket, opts.Bucket)
		return NewS3(ctx, opts.S3)
	case DriverGCS:
		opts.GCS.Bucket = cmp.Or(opts.GCS.Bucket, opts.Bucket)
		return NewGCS(ctx, opts.GCS)
	case DriverMinIO:
		opts.MinIO.Bucket = cmp.Or(opts.MinIO.Bucket, opts.Bucket)
		return NewMinIO(opts.MinIO)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
