package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrBlobUnavailable is the default failure injected by BlobStoreStub.
var ErrBlobUnavailable = errors.New("blob store unavailable")

// BlobStoreStub is an in-memory blob store. Upload failures are injected with
// UploadErr, which receives the 1-based number of the upload being attempted.
type BlobStoreStub struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	uploads int

	UploadErr func(n int) error
	DeleteErr error

	// VideoStarted, when set, receives a value as soon as UploadVideo begins.
	VideoStarted chan struct{}
	// VideoGate, when set, blocks UploadVideo until it yields or is closed.
	VideoGate chan struct{}
}

// NewBlobStoreStub creates an empty store.
func NewBlobStoreStub() *BlobStoreStub {
	return &BlobStoreStub{objects: make(map[string][]byte)}
}

func (s *BlobStoreStub) Upload(_ context.Context, data []byte, contentType string) (string, error) {
	return s.put(data, contentType)
}

func (s *BlobStoreStub) UploadVideo(_ context.Context, r io.Reader, _ int64, contentType string) (string, error) {
	if s.VideoStarted != nil {
		s.VideoStarted <- struct{}{}
	}
	if s.VideoGate != nil {
		<-s.VideoGate
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return s.put(data, contentType)
}

func (s *BlobStoreStub) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.objects, url)
	s.deleted = append(s.deleted, url)
	return nil
}

func (s *BlobStoreStub) put(data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.UploadErr != nil {
		if err := s.UploadErr(s.uploads); err != nil {
			return "", err
		}
	}
	url := fmt.Sprintf("https://blobs.test/%s/%d", contentType, s.uploads)
	s.objects[url] = data
	return url, nil
}

// Has reports whether url is currently stored.
func (s *BlobStoreStub) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[url]
	return ok
}

// Objects lists stored URLs in sorted order.
func (s *BlobStoreStub) Objects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for url := range s.objects {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// Deleted lists URLs passed to successful Delete calls, in call order.
func (s *BlobStoreStub) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// FailUpload returns an UploadErr hook failing exactly the nth upload.
func FailUpload(n int) func(int) error {
	return func(attempt int) error {
		if attempt == n {
			return ErrBlobUnavailable
		}
		return nil
	}
}
