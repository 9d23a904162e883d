package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/kec-gateway/internal/common"
)

// BodyLimit buffers request bodies up to a size cap and answers 413 beyond it.
// Handlers then read the body as usual and can read it more than once.
type BodyLimit struct {
	Max int64
	// Routes overrides Max for path prefixes; the longest matching prefix wins.
	Routes map[string]int64
}

func (b BodyLimit) limitFor(path string) int64 {
	limit, best := b.Max, -1
	for prefix, max := range b.Routes {
		if strings.HasPrefix(path, prefix) && len(prefix) > best {
			limit, best = max, len(prefix)
		}
	}
	return limit
}

func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := b.limitFor(r.URL.Path)
		if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > limit {
			tooLarge(w, limit)
			return
		}

		buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			tooLarge(w, limit)
			return
		case err != nil:
			common.Failure(w, common.Validation("invalid request body", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter, limit int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", map[string]int64{"max_bytes": limit})
}
