package deces

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	names   []string
	content map[string][]byte
}

func (s *fakeSource) List(context.Context) ([]string, error) { return s.names, nil }

func (s *fakeSource) Download(_ context.Context, name string) (io.ReadCloser, error) {
	b, ok := s.content[name]
	if !ok {
		return nil, errors.Errorf("no such file %s", name)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type fakeUploader struct {
	keys map[string][]byte
}

func (u *fakeUploader) Upload(_ context.Context, key string, body []byte) (string, error) {
	if u.keys == nil {
		u.keys = make(map[string][]byte)
	}
	u.keys[key] = body
	return "s3://test/" + key, nil
}

type fakeFileLog struct {
	known    map[string]struct{}
	recorded []string
}

func (f *fakeFileLog) ScrapedFileNames(context.Context) (map[string]struct{}, error) {
	if f.known == nil {
		return map[string]struct{}{}, nil
	}
	return f.known, nil
}

func (f *fakeFileLog) RecordScrapedFile(_ context.Context, name string) (bool, error) {
	f.recorded = append(f.recorded, name)
	return true, nil
}

func gzipped(t *testing.T, payload string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestRunProcessesNewFiles(t *testing.T) {
	src := &fakeSource{
		names: []string{"deces-2024-m01.txt.gz", "deces-2024-m02.txt.gz"},
		content: map[string][]byte{
			"deces-2024-m01.txt.gz": gzipped(t, "janvier"),
			"deces-2024-m02.txt.gz": gzipped(t, "fevrier"),
		},
	}
	up := &fakeUploader{}
	log := &fakeFileLog{}
	p := New(src, up, log, zap.NewNop())

	processed, failures, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Len(t, processed, 2)
	assert.Equal(t, []byte("janvier"), up.keys["deces/2024/deces-2024-m01.txt"])
	assert.Equal(t, []string{"deces-2024-m01.txt.gz", "deces-2024-m02.txt.gz"}, log.recorded)
}

func TestRunSkipsAlreadyIngestedFiles(t *testing.T) {
	src := &fakeSource{
		names: []string{"deces-2024-m01.txt.gz", "deces-2024-m02.txt.gz"},
		content: map[string][]byte{
			"deces-2024-m02.txt.gz": gzipped(t, "fevrier"),
		},
	}
	up := &fakeUploader{}
	log := &fakeFileLog{known: map[string]struct{}{"deces-2024-m01.txt.gz": {}}}
	p := New(src, up, log, zap.NewNop())

	processed, failures, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []string{"deces-2024-m02.txt.gz"}, processed)
}

func TestRunIsolatesPerFileFailures(t *testing.T) {
	names := []string{
		"deces-2024-m01.txt.gz",
		"deces-2024-m02.txt.gz",
		"deces-2024-m03.txt.gz",
		"deces-2024-m04.txt.gz",
		"deces-2024-m05.txt.gz",
	}
	content := make(map[string][]byte)
	for _, n := range names {
		content[n] = gzipped(t, n)
	}
	// File 3 is corrupt and fails during extraction.
	content["deces-2024-m03.txt.gz"] = []byte("not gzip at all")

	src := &fakeSource{names: names, content: content}
	up := &fakeUploader{}
	log := &fakeFileLog{}
	p := New(src, up, log, zap.NewNop())

	processed, failures, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"deces-2024-m01.txt.gz",
		"deces-2024-m02.txt.gz",
		"deces-2024-m04.txt.gz",
		"deces-2024-m05.txt.gz",
	}, processed)
	require.Len(t, failures, 1)
	assert.Equal(t, "deces-2024-m03.txt.gz", failures[0].FileName)
	assert.Error(t, failures[0].Err)

	assert.Len(t, up.keys, 4)
	assert.NotContains(t, log.recorded, "deces-2024-m03.txt.gz")
}

func TestRunFatalWhenListingFails(t *testing.T) {
	p := New(&failingSource{}, &fakeUploader{}, &fakeFileLog{}, zap.NewNop())
	_, _, err := p.Run(context.Background())
	require.Error(t, err)
}

type failingSource struct{}

func (failingSource) List(context.Context) ([]string, error) {
	return nil, errors.New("index unreachable")
}

func (failingSource) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("unreachable")
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "deces/2024/deces-2024-m07.txt", storageKey("deces-2024-m07.txt.gz"))
	assert.Equal(t, "deces/2023/deces-2023.txt", storageKey("deces-2023.txt.gz"))
}
