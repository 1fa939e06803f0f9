package manifest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/vango-dev/flight/internal/errors"
)

type fakeS3 struct {
	objects map[string]string
	gotKey  string
	err     error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotKey = aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[f.gotKey]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"site/routes/prod.yaml": blogYAML}}
	src := NewS3Source(client, "site", "routes/prod.yaml")

	m, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "site/routes/prod.yaml", client.gotKey)
	assert.Equal(t, "s3://site/routes/prod.yaml", m.Source)
	assert.Len(t, m.Routes, 4)
}

func TestS3SourceErrors(t *testing.T) {
	t.Run("get fails", func(t *testing.T) {
		src := NewS3Source(&fakeS3{err: errors.New("access denied")}, "site", "routes.json")
		_, err := src.Load(context.Background())
		require.True(t, ferrors.HasCode(err, "E200"))
		assert.Contains(t, err.Error(), "access denied")
	})

	t.Run("too large", func(t *testing.T) {
		src := NewS3Source(&fakeS3{objects: map[string]string{"site/routes.json": blogJSON}}, "site", "routes.json")
		src.MaxSize = 10
		_, err := src.Load(context.Background())
		assert.True(t, ferrors.HasCode(err, "E200"))
	})

	t.Run("bad extension", func(t *testing.T) {
		client := &fakeS3{}
		_, err := NewS3Source(client, "site", "routes.txt").Load(context.Background())
		assert.True(t, ferrors.HasCode(err, "E200"))
		assert.Empty(t, client.gotKey)
	})
}

func TestFileSource(t *testing.T) {
	path := writeFile(t, "routes.json", blogJSON)
	var src Source = FileSource{Path: path}
	m, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.Routes, 4)
}
