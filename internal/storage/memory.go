package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
)

// MemoryPathPrefix is where Handler expects to be mounted.
const MemoryPathPrefix = "/storage/"

// DefaultMaxObjectBytes caps a single transfer into the memory store.
const DefaultMaxObjectBytes int64 = 25 << 20

type memObject struct {
	data        []byte
	contentType string
	etag        string
}

// MemoryStorage is an object store for development and tests. It signs
// URLs the way a cloud store does: the signature covers method, path,
// content type and expiry, so a transfer with any other Content-Type is
// rejected with 403.
type MemoryStorage struct {
	mu      sync.RWMutex
	bucket  string
	baseURL string
	secret  []byte
	clock   clock.Clock
	maxSize int64
	objects map[string]memObject
}

// NewMemoryStorage returns a store whose URLs point at baseURL+MemoryPathPrefix.
// An empty baseURL yields relative URLs; an empty secret is replaced by a
// random one.
func NewMemoryStorage(bucket, baseURL string, secret []byte, c clock.Clock) *MemoryStorage {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	if c == nil {
		c = clock.Real{}
	}
	return &MemoryStorage{
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		clock:   c,
		maxSize: DefaultMaxObjectBytes,
		objects: make(map[string]memObject),
	}
}

// LimitObjectSize sets the largest accepted transfer. Non-positive n keeps
// the current limit.
func (m *MemoryStorage) LimitObjectSize(n int64) *MemoryStorage {
	if n > 0 {
		m.maxSize = n
	}
	return m
}

func (m *MemoryStorage) Bucket() string { return m.bucket }

func (m *MemoryStorage) PresignPut(_ context.Context, objectPath, contentType string, expires time.Duration) (string, error) {
	return m.sign(http.MethodPut, objectPath, contentType, expires), nil
}

func (m *MemoryStorage) PresignGet(_ context.Context, objectPath string, expires time.Duration) (string, error) {
	return m.sign(http.MethodGet, objectPath, "", expires), nil
}

func (m *MemoryStorage) Stat(_ context.Context, objectPath string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[objectPath]
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound
	}
	return ObjectInfo{Size: int64(len(o.data)), ContentType: o.contentType, ETag: o.etag}, nil
}

// Object returns a copy of the stored bytes, for tests.
func (m *MemoryStorage) Object(objectPath string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[objectPath]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), o.data...), o.contentType, true
}

func (m *MemoryStorage) sign(method, objectPath, contentType string, expires time.Duration) string {
	exp := m.clock.Now().Add(expires).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", m.signature(method, objectPath, contentType, exp))
	p := (&url.URL{Path: MemoryPathPrefix + m.bucket + "/" + objectPath}).EscapedPath()
	return m.baseURL + p + "?" + q.Encode()
}

func (m *MemoryStorage) signature(method, objectPath, contentType string, exp int64) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s\n%s/%s\n%s\n%d", method, m.bucket, objectPath, contentType, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// Handler serves signed PUT and GET requests under MemoryPathPrefix.
func (m *MemoryStorage) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, MemoryPathPrefix)
		bucket, objectPath, ok := strings.Cut(rest, "/")
		if !ok || bucket != m.bucket || objectPath == "" {
			http.Error(w, "NoSuchBucket", http.StatusNotFound)
			return
		}
		contentType := ""
		if r.Method == http.MethodPut {
			contentType = r.Header.Get("Content-Type")
		} else if r.Method != http.MethodGet {
			http.Error(w, "MethodNotAllowed", http.StatusMethodNotAllowed)
			return
		}
		if msg, ok := m.verify(r, objectPath, contentType); !ok {
			http.Error(w, msg, http.StatusForbidden)
			return
		}
		if r.Method == http.MethodPut {
			if r.ContentLength > m.maxSize {
				http.Error(w, "EntityTooLarge", http.StatusRequestEntityTooLarge)
				return
			}
			data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, m.maxSize))
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "EntityTooLarge", http.StatusRequestEntityTooLarge)
				return
			}
			if err != nil {
				http.Error(w, "IncompleteBody", http.StatusBadRequest)
				return
			}
			sum := sha256.Sum256(data)
			etag := hex.EncodeToString(sum[:8])
			m.mu.Lock()
			m.objects[objectPath] = memObject{data: data, contentType: contentType, etag: etag}
			m.mu.Unlock()
			w.Header().Set("ETag", `"`+etag+`"`)
			w.WriteHeader(http.StatusOK)
			return
		}
		m.mu.RLock()
		o, found := m.objects[objectPath]
		m.mu.RUnlock()
		if !found {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", o.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(o.data)))
		_, _ = w.Write(o.data)
	})
}

func (m *MemoryStorage) verify(r *http.Request, objectPath, contentType string) (string, bool) {
	q := r.URL.Query()
	exp, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return "AuthorizationQueryParametersError", false
	}
	want := m.signature(r.Method, objectPath, contentType, exp)
	if !hmac.Equal([]byte(want), []byte(q.Get("signature"))) {
		return "SignatureDoesNotMatch", false
	}
	if m.clock.Now().Unix() > exp {
		return "Request has expired", false
	}
	return "", true
}
