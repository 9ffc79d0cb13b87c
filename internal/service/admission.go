package service

import (
	"sync"

	"xplore/internal/models"
	"xplore/internal/observability"

	"golang.org/x/sync/semaphore"
)

// DefaultLargeUploadBytes is the size above which a video needs the permit.
const DefaultLargeUploadBytes int64 = 40 << 20

// AdmissionGate lets at most one large video upload run per process. It never
// queues: a caller that finds the permit taken is rejected at once.
type AdmissionGate struct {
	sem       *semaphore.Weighted
	threshold int64
}

// NewAdmissionGate creates a gate for uploads strictly larger than threshold
// bytes. A non-positive threshold uses DefaultLargeUploadBytes.
func NewAdmissionGate(threshold int64) *AdmissionGate {
	if threshold <= 0 {
		threshold = DefaultLargeUploadBytes
	}
	return &AdmissionGate{sem: semaphore.NewWeighted(1), threshold: threshold}
}

// Threshold returns the size limit above which the permit is required.
func (g *AdmissionGate) Threshold() int64 {
	return g.threshold
}

// Admit asks for permission to upload a video of size bytes. The returned
// release func must be called once the upload is over; extra calls are no-ops.
func (g *AdmissionGate) Admit(size int64) (release func(), err error) {
	if size <= g.threshold {
		return func() {}, nil
	}
	if !g.sem.TryAcquire(1) {
		observability.AdmissionRejections.Inc()
		return nil, models.NewAdmissionRejectedError("Another large upload is in progress, try again shortly")
	}
	observability.AdmissionInFlight.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			observability.AdmissionInFlight.Dec()
			g.sem.Release(1)
		})
	}, nil
}
