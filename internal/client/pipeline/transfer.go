package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// defaultDownloadName is used when neither the caller nor the reply names the file.
const defaultDownloadName = "download"

// Transfer describes a completed download.
type Transfer struct {
	Path  string
	Bytes int64
}

// Upload posts r as the multipart "file" field and decodes the envelope
// data into out. onProgress receives whole percentages of size as bytes
// are sent; it is not called when size is unknown (<= 0).
func (p *Pipeline) Upload(
	ctx context.Context,
	path, filename string,
	r io.Reader,
	size int64,
	onProgress func(percent int),
	out any,
	opts ...RequestOption,
) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	counter := &progressReader{r: r, total: size, fn: onProgress}
	done := make(chan struct{})

	go func() {
		defer close(done)
		part, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err == nil {
			_, err = io.Copy(part, counter)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	err := p.exchange(ctx, http.MethodPost, path, collect(opts), pr, mw.FormDataContentType(), decodeEnvelope(out))
	// Unblocks the writer if the call ended before the body was consumed.
	pr.Close()
	<-done
	p.metrics.AddTransfer("up", counter.read)
	return err
}

// Download saves the raw body of GET path and reports where it went.
//
// dest may name a file, an existing directory, or be empty (current
// directory); in the latter two cases the file name comes from the reply's
// Content-Disposition header. The file appears only once fully written.
// A JSON reply carrying a failure envelope is classified like any other call.
func (p *Pipeline) Download(
	ctx context.Context,
	path, dest string,
	onProgress func(percent int),
	opts ...RequestOption,
) (*Transfer, error) {
	var result Transfer

	err := p.exchange(ctx, http.MethodGet, path, collect(opts), nil, "", func(resp *http.Response) *domain.Error {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return classifyTransport(err)
			}
			_, derr := classifyReply(resp.StatusCode, data)
			return derr
		}

		body := io.Reader(resp.Body)
		if isJSON(resp.Header.Get("Content-Type")) {
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return classifyTransport(err)
			}
			if env, ok := domain.ParseEnvelope(data); ok && !env.Success() {
				return classifyEnvelope(env).WithStatus(resp.StatusCode)
			}
			body = bytes.NewReader(data)
		}

		target, err := downloadTarget(dest, resp.Header.Get("Content-Disposition"))
		if err != nil {
			return domain.ErrUnknown.WithMessage(err.Error()).WithCause(err)
		}

		counter := &progressReader{r: body, total: resp.ContentLength, fn: onProgress}
		n, err := saveAtomic(target, counter)
		if err != nil {
			if counter.err != nil {
				return classifyTransport(counter.err)
			}
			return domain.ErrUnknown.WithMessage(fmt.Sprintf("save %s: %v", target, err)).WithCause(err)
		}

		result = Transfer{Path: target, Bytes: n}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.metrics.AddTransfer("down", result.Bytes)
	return &result, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

// downloadTarget resolves the local path for a download.
func downloadTarget(dest, disposition string) (string, error) {
	name := defaultDownloadName
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if fn := filepath.Base(params["filename"]); fn != "" && fn != "." && fn != "/" {
			name = fn
		}
	}

	if dest == "" {
		return name, nil
	}
	info, err := os.Stat(dest)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(dest, name), nil
	case err == nil || os.IsNotExist(err):
		return dest, nil
	default:
		return "", fmt.Errorf("inspect %s: %w", dest, err)
	}
}

// saveAtomic copies r into a temp file beside path and renames it into place.
func saveAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, err
	}
	return n, nil
}

// progressReader reports whole-percent progress of total as it is read.
// Read errors are kept so callers can tell network failures from local ones.
type progressReader struct {
	r     io.Reader
	total int64
	fn    func(int)
	read  int64
	last  int
	err   error
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.read += int64(n)
	if err != nil && err != io.EOF {
		pr.err = err
	}

	if pr.fn != nil && pr.total > 0 && n > 0 {
		pct := int(pr.read * 100 / pr.total)
		if pct > 100 {
			pct = 100
		}
		if pct != pr.last {
			pr.last = pct
			pr.fn(pct)
		}
	}
	return n, err
}
