package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// Size units for MaxBodySize.
const (
	KB = 1024
	MB = 1024 * KB
)

// DefaultTimeout bounds a single request. Order placement runs on the
// worker, so shop handlers only touch in-memory state and the order list.
const DefaultTimeout = 15 * time.Second

// MaxBodySize rejects bodies over maxBytes with 413. Bodies of unknown length
// are cut off by http.MaxBytesReader and fail when the form is parsed.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				reject(w, r, domain.Errorf(domain.ETOOLARGE, "", "Request body too large"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout cancels the request context after d. If the handler has not
// written anything by then the client gets 503; otherwise the partial
// response stands.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			tw := &timeoutWriter{w: w, h: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan any, 1)

			go func() {
				defer close(done)
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				// Hand panics back to the Recovery middleware on this goroutine.
				select {
				case p := <-panicked:
					panic(p)
				default:
				}
			case <-ctx.Done():
				if tw.expire() {
					reject(w, r, domain.Unavailable("", "The request took too long. Please try again."))
				}
			}
		})
	}
}

// timeoutWriter drops writes once the request has timed out. The handler
// gets its own header map so it never races the timeout response.
type timeoutWriter struct {
	w       http.ResponseWriter
	h       http.Header
	mu      sync.Mutex
	wrote   bool
	expired bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	if tw.expired || tw.wrote {
		return
	}
	tw.wrote = true
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = v
	}
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.expired {
		return 0, http.ErrHandlerTimeout
	}
	tw.writeHeaderLocked(http.StatusOK)
	return tw.w.Write(b)
}

// expire stops further writes. It reports whether nothing was written yet.
func (tw *timeoutWriter) expire() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.expired = true
	return !tw.wrote
}
