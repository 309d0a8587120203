package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	headErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Adapter(t *testing.T) {
	t.Parallel()

	api := &fakeS3{objects: map[string][]byte{}}
	s := &S3Adapter{api: api, bucket: "archive"}
	ctx := context.Background()

	ok, err := s.Exists(ctx, "otp/2026/01/02.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := s.Put(ctx, "otp/2026/01/02.jsonl", []byte("{}\n"), PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"events": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, ObjectInfo{Key: "otp/2026/01/02.jsonl", Size: 3, ETag: `"etag"`}, info)
	require.Len(t, api.puts, 1)
	assert.Equal(t, int64(3), aws.ToInt64(api.puts[0].ContentLength))
	assert.Equal(t, contentMD5([]byte("{}\n")), aws.ToString(api.puts[0].ContentMD5))
	assert.Equal(t, "application/x-ndjson", aws.ToString(api.puts[0].ContentType))

	ok, err = s.Exists(ctx, "otp/2026/01/02.jsonl")
	require.NoError(t, err)
	assert.True(t, ok)

	boom := errors.New("access denied")
	api.headErr = boom
	_, err = s.Exists(ctx, "otp/2026/01/02.jsonl")
	assert.ErrorIs(t, err, boom)
}

func TestIsS3NotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, isS3NotFound(&types.NotFound{}))
	assert.True(t, isS3NotFound(&types.NoSuchKey{}))
	assert.False(t, isS3NotFound(errors.New("boom")))
}

func TestContentMD5(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", contentMD5(nil))
}

func TestNewFromDriver(t *testing.T) {
	t.Parallel()

	_, err := NewFromDriver(context.Background(), "ftp", FactoryOptions{Bucket: "b"})
	require.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewFromDriver(context.Background(), DriverMinIO, FactoryOptions{})
	require.ErrorIs(t, err, ErrBucketRequired)

	stg, err := NewFromDriver(context.Background(), " MINIO ", FactoryOptions{
		Bucket: "archive",
		MinIO:  MinIOOptions{Endpoint: "localhost:9000"},
	})
	require.NoError(t, err)
	assert.Equal(t, "archive", stg.(*MinIOAdapter).bucket)
}
