package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataglove/glovectl/internal/core/domain"
)

func TestPipeline_Upload(t *testing.T) {
	payload := bytes.Repeat([]byte("glove-frame;"), 4096)

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "frames.csv", header.Filename)
		assert.Equal(t, payload, data)

		writeEnvelope(w, 200, 200, "ok", map[string]any{"size": len(data)})
	})
	f.writer.Establish(domain.Credential{AccessToken: "tok"}, nil)

	var progress []int
	var out struct {
		Size int `json:"size"`
	}
	err := f.pipeline.Upload(context.Background(), "/v1/data/sensor-data/import", "/tmp/x/frames.csv",
		bytes.NewReader(payload), int64(len(payload)),
		func(p int) { progress = append(progress, p) }, &out)
	require.NoError(t, err)

	assert.Equal(t, len(payload), out.Size)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1], "progress is monotonic")
	}
	assert.Equal(t, float64(len(payload)), testutil.ToFloat64(f.metrics.TransferBytes.WithLabelValues("up")))
	assert.True(t, f.progress.balanced())
}

func TestPipeline_UploadFailureEndsProgress(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})

	err := f.pipeline.Upload(context.Background(), "/upload", "big.bin",
		bytes.NewReader(make([]byte, 1024)), 1024, nil, nil)
	require.Error(t, err)
	assert.Equal(t, "request failed (status 413)", err.Error())
	assert.True(t, f.progress.balanced())
}

func TestPipeline_Download(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, 10_000)

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/export":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", `attachment; filename="sensor-2024.csv"`)
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			w.Write(content)
		case "/api/expired":
			writeEnvelope(w, 200, 401, "login again", nil)
		case "/api/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/api/truncated":
			w.Header().Set("Content-Length", "4096")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"code":502`))
		}
	})
	ctx := context.Background()

	t.Run("into directory uses server name", func(t *testing.T) {
		dir := t.TempDir()
		var last int
		tr, err := f.pipeline.Download(ctx, "/export", dir, func(p int) { last = p })
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "sensor-2024.csv"), tr.Path)
		assert.Equal(t, int64(len(content)), tr.Bytes)
		assert.Equal(t, 100, last)

		data, err := os.ReadFile(tr.Path)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("explicit file name", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "out.bin")
		tr, err := f.pipeline.Download(ctx, "/export", dest, nil)
		require.NoError(t, err)
		assert.Equal(t, dest, tr.Path)
	})

	t.Run("failure envelope leaves no file", func(t *testing.T) {
		dir := t.TempDir()
		f.writer.Establish(domain.Credential{AccessToken: "tok"}, nil)

		_, err := f.pipeline.Download(ctx, "/expired", dir, nil)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
		assert.False(t, f.state.IsAuthenticated())

		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.pipeline.Download(ctx, "/missing", t.TempDir(), nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("cut-off error body", func(t *testing.T) {
		_, err := f.pipeline.Download(ctx, "/truncated", t.TempDir(), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnreachable)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	assert.True(t, f.progress.balanced())
}

func TestDownloadTarget(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		dest        string
		disposition string
		want        string
	}{
		{"empty dest default name", "", "", defaultDownloadName},
		{"empty dest header name", "", `attachment; filename="a.csv"`, "a.csv"},
		{"directory", dir, `attachment; filename="a.csv"`, filepath.Join(dir, "a.csv")},
		{"path traversal stripped", dir, `attachment; filename="../../etc/passwd"`, filepath.Join(dir, "passwd")},
		{"new file", filepath.Join(dir, "new.bin"), `attachment; filename="a.csv"`, filepath.Join(dir, "new.bin")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := downloadTarget(tt.dest, tt.disposition)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
