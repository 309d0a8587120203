// Package storage uploads the daily OTP archive objects to S3, Google Cloud
// Storage or MinIO. Objects are written whole and never read back by the
// service; Exists lets the archive job skip days it already shipped.
package storage

import (
	"context"
	"crypto/md5" //nolint:gosec // integrity check, not security
	"encoding/base64"
	"errors"
	"io"
)

var ErrBucketRequired = errors.New("storage: bucket is required")

type Storage interface {
	Put(ctx context.Context, key string, body []byte, opts PutOptions) (ObjectInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	io.Closer
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// contentMD5 is the base64 Content-MD5 the stores verify the upload against.
func contentMD5(body []byte) string {
	sum := md5.Sum(body) //nolint:gosec // see import
	return base64.StdEncoding.EncodeToString(sum[:])
}
