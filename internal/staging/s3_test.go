package staging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte // bucket/key
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket := aws.ToString(in.Bucket) + "/"
	keys := make([]string, 0)
	for k := range f.objects {
		if strings.HasPrefix(k, bucket+aws.ToString(in.Prefix)) {
			keys = append(keys, strings.TrimPrefix(k, bucket))
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Stager_RoundTripDirectory(t *testing.T) {
	fake := newFakeS3()
	st := &S3Stager{client: fake}
	dir := t.TempDir()

	out := filepath.Join(dir, "case_0", "md")
	writeFile(t, filepath.Join(out, "metric.out"), "1.5", 0o644)
	writeFile(t, filepath.Join(out, "frames", "trj.out"), "xyz", 0o644)

	require.NoError(t, st.StageOut(context.Background(), model.StagedFile{URL: "s3://bucket/results/case_0/md", LocalPath: out}))
	assert.Equal(t, []byte("1.5"), fake.objects["bucket/results/case_0/md/metric.out"])
	assert.Equal(t, []byte("xyz"), fake.objects["bucket/results/case_0/md/frames/trj.out"])

	in := filepath.Join(dir, "case_0", "render_input")
	require.NoError(t, st.StageIn(context.Background(), model.StagedFile{URL: "s3://bucket/results/case_0/md", LocalPath: in}))

	data, err := os.ReadFile(filepath.Join(in, "frames", "trj.out"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(data))
}

func TestS3Stager_SingleObject(t *testing.T) {
	fake := newFakeS3()
	fake.objects["bucket/inputs/a.inp"] = []byte("%mem=1GB")
	fake.objects["bucket/inputs/a.inp.bak"] = []byte("old")
	st := &S3Stager{client: fake}

	dst := filepath.Join(t.TempDir(), "a.inp")
	require.NoError(t, st.StageIn(context.Background(), model.StagedFile{URL: "s3://bucket/inputs/a.inp", LocalPath: dst}))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "%mem=1GB", string(data))
}

func TestS3Stager_Missing(t *testing.T) {
	st := &S3Stager{client: newFakeS3()}

	err := st.StageIn(context.Background(), model.StagedFile{URL: "s3://bucket/none", LocalPath: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = st.StageOut(context.Background(), model.StagedFile{URL: "s3://bucket/x", LocalPath: filepath.Join(t.TempDir(), "gone")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://my-bucket/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "a/b/c", key)

	_, _, err = parseS3URL("file:///a")
	assert.Error(t, err)
}
