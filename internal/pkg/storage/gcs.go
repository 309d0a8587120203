package storage

import (
	"context"
	"crypto/md5" //nolint:gosec // integrity check
	"errors"
	"fmt"
	"os"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

type GCSAdapter struct {
	client *gcs.Client
	bucket string
}

// GCSOptions builds a client from a service account key, inline or on disk,
// or from application default credentials when neither is set.
type GCSOptions struct {
	Bucket string
	// Client, when set, is used as is and the fields below are ignored.
	Client *gcs.Client
	// CredentialsFile points to a service account JSON key.
	CredentialsFile string
	// CredentialsJSON is an inline service account JSON key.
	CredentialsJSON []byte
	// Endpoint overrides the API endpoint (fake-gcs-server and friends).
	Endpoint string
	// WithoutAuth disables authentication, for emulators only.
	WithoutAuth bool
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCSAdapter, error) {
	if opts.Bucket == "" {
		return nil, ErrBucketRequired
	}

	client := opts.Client
	if client == nil {
		clientOpts, err := gcsClientOptions(ctx, opts)
		if err != nil {
			return nil, err
		}
		created, err := gcs.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, err
		}
		client = created
	}

	return &GCSAdapter{client: client, bucket: opts.Bucket}, nil
}

func gcsClientOptions(ctx context.Context, opts GCSOptions) ([]option.ClientOption, error) {
	var out []option.ClientOption
	if opts.WithoutAuth {
		out = append(out, option.WithoutAuthentication())
	}

	credsJSON := opts.CredentialsJSON
	if len(credsJSON) == 0 && opts.CredentialsFile != "" {
		// #nosec G304 -- path is from trusted config file.
		raw, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("storage: read gcs credentials: %w", err)
		}
		credsJSON = raw
	}
	if len(credsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, credsJSON, gcs.ScopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("storage: parse gcs credentials: %w", err)
		}
		out = append(out, option.WithCredentials(creds))
	}

	if opts.Endpoint != "" {
		out = append(out, option.WithEndpoint(opts.Endpoint))
	}

	return out, nil
}

func (g *GCSAdapter) Put(ctx context.Context, key string, body []byte, opts PutOptions) (ObjectInfo, error) {
	sum := md5.Sum(body) //nolint:gosec // integrity check
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = opts.Metadata
	w.MD5 = sum[:]

	if _, err := w.Write(body); err != nil {
		return ObjectInfo{}, errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, err
	}

	info := ObjectInfo{Key: key, Size: int64(len(body))}
	if attrs := w.Attrs(); attrs != nil {
		info.ETag = attrs.Etag
	}
	return info, nil
}

func (g *GCSAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gcs.ErrObjectNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (g *GCSAdapter) Close() error {
	return g.client.Close()
}
