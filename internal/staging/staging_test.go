package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

type countingStager struct {
	ins  atomic.Int32
	outs atomic.Int32
}

func (c *countingStager) StageIn(context.Context, model.StagedFile) error {
	c.ins.Add(1)
	return nil
}

func (c *countingStager) StageOut(context.Context, model.StagedFile) error {
	c.outs.Add(1)
	return nil
}

func fileURL(p string) string {
	return "file://" + filepath.ToSlash(p)
}

func TestRouter_DispatchesByScheme(t *testing.T) {
	fake := &countingStager{}
	r := NewRouter().Register("s3", fake)

	require.NoError(t, r.StageIn(context.Background(), model.StagedFile{URL: "s3://b/k", LocalPath: "/tmp/x"}))
	require.NoError(t, r.StageOut(context.Background(), model.StagedFile{URL: "s3://b/k", LocalPath: "/tmp/x"}))
	assert.Equal(t, int32(1), fake.ins.Load())
	assert.Equal(t, int32(1), fake.outs.Load())
}

func TestRouter_UnsupportedScheme(t *testing.T) {
	err := NewRouter().StageIn(context.Background(), model.StagedFile{URL: "gs://b/k", LocalPath: "/tmp/x"})
	require.Error(t, err)

	var stErr *StagingError
	require.True(t, errors.As(err, &stErr))
	assert.Equal(t, "in", stErr.Op)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestRouter_SharedInputStagedOnce(t *testing.T) {
	fake := &countingStager{}
	r := NewRouter().Register("s3", fake)
	f := model.StagedFile{URL: "s3://b/src", LocalPath: "/runs/1/src"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.StageIn(context.Background(), f))
		}()
	}
	wg.Wait()
	require.NoError(t, r.StageIn(context.Background(), f))

	assert.Equal(t, int32(1), fake.ins.Load())
}

func TestRouter_OptionalMissingInput(t *testing.T) {
	dir := t.TempDir()
	r := NewRouter()

	missing := model.StagedFile{URL: fileURL(filepath.Join(dir, "nope.chk")), LocalPath: filepath.Join(dir, "out", "nope.chk")}
	err := r.StageIn(context.Background(), missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	missing.Optional = true
	require.NoError(t, r.StageIn(context.Background(), missing))
	_, statErr := os.Stat(missing.LocalPath)
	assert.True(t, os.IsNotExist(statErr))
}
