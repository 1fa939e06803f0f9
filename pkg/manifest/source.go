package manifest

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	ferrors "github.com/vango-dev/flight/internal/errors"
)

// Source loads a manifest.
type Source interface {
	Load(ctx context.Context) (*Manifest, error)
}

// FileSource loads a manifest from the local file system.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(context.Context) (*Manifest, error) {
	return LoadFile(s.Path)
}

// ObjectGetter is the part of *s3.Client that S3Source uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source loads a manifest stored as an S3 object. The format follows the
// key's extension.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	src := manifest.NewS3Source(s3.NewFromConfig(cfg), "my-bucket", "routes/prod.yaml")
type S3Source struct {
	client ObjectGetter
	bucket string
	key    string

	// MaxSize bounds the object size read. Default 4 MiB.
	MaxSize int64
}

// NewS3Source returns a source for s3://bucket/key.
func NewS3Source(client ObjectGetter, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key, MaxSize: 4 << 20}
}

// Load implements Source.
func (s *S3Source) Load(ctx context.Context) (*Manifest, error) {
	name := fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
	format, err := FormatFor(s.key)
	if err != nil {
		return nil, withFile(err, name)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, ferrors.New("E200").Wrap(fmt.Errorf("s3 get failed: %w", err)).WithSource(name, -1)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, s.MaxSize+1))
	if err != nil {
		return nil, ferrors.New("E200").Wrap(err).WithSource(name, -1)
	}
	if int64(len(data)) > s.MaxSize {
		return nil, ferrors.New("E200").
			WithDetailf("object larger than %d bytes", s.MaxSize).
			WithSource(name, -1)
	}

	m, err := Parse(data, format)
	if err != nil {
		return nil, withFile(err, name)
	}
	m.Source = name
	return m, nil
}
