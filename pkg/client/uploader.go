package client

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/upload"
)

// ProgressFunc receives bytes sent so far and the total. It is called from
// the transfer goroutine.
type ProgressFunc func(sent, total int64)

// File is one payload to upload. ContentType is the declared type; empty
// selects application/octet-stream.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// OpenFile opens path and declares its type from the extension.
// The caller closes the returned closer.
func OpenFile(path string) (File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return File{}, nil, err
	}
	name := filepath.Base(path)
	return File{Name: name, ContentType: mime.TypeByExtension(filepath.Ext(name)), Size: st.Size(), Body: f}, f, nil
}

// Uploader runs the two-phase protocol: authorize, transfer straight to the
// object store, then register the attachment.
type Uploader struct {
	api      *Client
	transfer *http.Client
}

// NewUploader transfers with hc. A nil hc shares the API client's transport
// but drops any overall timeout: a transfer lasts until ctx ends or the
// signed URL expires. Signed URLs carry their own authorization, so the
// transfer never sends the bearer token.
func NewUploader(api *Client, hc *http.Client) *Uploader {
	if hc == nil {
		hc = &http.Client{Transport: api.http.Transport}
	}
	return &Uploader{api: api, transfer: hc}
}

// Upload attaches f to the draft. Issuance errors keep their code; a
// rejected or failed transfer is UploadFailed. Nothing is registered unless
// the transfer succeeded.
func (u *Uploader) Upload(ctx context.Context, draftID string, f File, progress ProgressFunc) (*draft.Draft, error) {
	contentType := strings.TrimSpace(f.ContentType)
	if contentType == "" {
		contentType = upload.DefaultContentType
	}
	signed, err := u.api.SignedURL(ctx, upload.Request{DraftID: draftID, FileName: f.Name, ContentType: contentType})
	if err != nil {
		return nil, err
	}
	if err := u.put(ctx, signed, contentType, f, progress); err != nil {
		return nil, err
	}
	return u.api.RegisterAttachment(ctx, draftID, upload.Registration{Name: f.Name, Type: contentType, ObjectPath: signed.ObjectPath})
}

func (u *Uploader) put(ctx context.Context, signed *upload.SignedURL, contentType string, f File, progress ProgressFunc) error {
	target, err := u.api.Resolve(signed.URL)
	if err != nil {
		return apperr.Wrap(apperr.UploadFailed, err, "invalid upload url")
	}
	if f.Body == nil {
		return apperr.New(apperr.InvalidArgument, "file body is required")
	}
	body := &progressReader{r: f.Body, total: f.Size, fn: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return apperr.Wrap(apperr.UploadFailed, err, "build transfer request")
	}
	req.ContentLength = f.Size
	req.Header.Set("Content-Type", contentType)
	resp, err := u.transfer.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return apperr.Wrap(apperr.UploadFailed, err, "upload cancelled")
		}
		return apperr.Wrap(apperr.UploadFailed, err, "transfer failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.New(apperr.UploadFailed, "object store rejected the transfer with status %d", resp.StatusCode)
	}
	if progress != nil {
		progress(f.Size, f.Size)
	}
	return nil
}

type progressReader struct {
	r     io.Reader
	sent  atomic.Int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.fn != nil {
		p.fn(p.sent.Add(int64(n)), p.total)
	}
	return n, err
}

