package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/supserrr/vevurn-sub002/api/responses"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	pkgredis "github.com/supserrr/vevurn-sub002/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	// CheckoutReplayTTL covers a till that comes back online days later and
	// retries its queued checkouts.
	CheckoutReplayTTL = 7 * 24 * time.Hour
	DefaultReplayTTL  = 24 * time.Hour

	maxIdempotencyKeyLen = 255
	inFlightTTL          = time.Minute
	maxReplayBody        = 1 << 20
)

// ReplayStore is the Redis surface Replay needs.
type ReplayStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// replayEntry is what lives under an idempotency key: a claim while the
// first request runs, then its response.
type replayEntry struct {
	Fingerprint string `json:"fp"`
	Done        bool   `json:"done"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"ct,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Replay makes unsafe endpoints idempotent under the Idempotency-Key header.
// The first request claims the key, later ones with the same body get the
// stored response, and a different body under the same key is refused.
type Replay struct {
	store ReplayStore
	logg  *logger.Logger
}

// NewReplay returns nil for a nil store. A nil *Replay passes requests
// through untouched.
func NewReplay(store ReplayStore, logg *logger.Logger) *Replay {
	if store == nil {
		return nil
	}
	return &Replay{store: store, logg: logg}
}

// For guards a route and keeps its responses for ttl.
func (rp *Replay) For(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rp == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := rp.serve(w, r, next, ttl); err != nil {
				responses.WriteError(r.Context(), rp.logg, w, err)
			}
		})
	}
}

func (rp *Replay) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) error {
	ctx := r.Context()
	id := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if id == "" || len(id) > maxIdempotencyKeyLen {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s header of 1-%d characters required", IdempotencyHeader, maxIdempotencyKeyLen)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBody))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := rp.store.IdempotencyKey(replayScope(r), id)
	fp := fingerprint(r.Method, r.URL.Path, body)

	claim, _ := json.Marshal(replayEntry{Fingerprint: fp})
	won, err := rp.store.SetNX(ctx, key, string(claim), inFlightTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !won {
		return rp.replay(ctx, w, key, fp)
	}

	rec := &recorder{ResponseWriter: w, keep: true}
	next.ServeHTTP(rec, r)

	// a server failure frees the key so the client may retry it
	if rec.Status() >= http.StatusInternalServerError {
		if err := rp.store.Del(context.WithoutCancel(ctx), key); err != nil {
			rp.warn(ctx, "release idempotency key", err)
		}
		return nil
	}
	done, _ := json.Marshal(replayEntry{
		Fingerprint: fp,
		Done:        true,
		Status:      rec.Status(),
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
	})
	if err := rp.store.Set(context.WithoutCancel(ctx), key, string(done), ttl); err != nil {
		rp.warn(ctx, "store idempotent response", err)
	}
	return nil
}

func (rp *Replay) replay(ctx context.Context, w http.ResponseWriter, key, fp string) error {
	raw, err := rp.store.Get(ctx, key)
	if pkgredis.IsNil(err) {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key expired mid-request, retry")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key")
	}
	var entry replayEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency entry")
	}
	switch {
	case entry.Fingerprint != fp:
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request")
	case !entry.Done:
		return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still running")
	}

	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
	return nil
}

func (rp *Replay) warn(ctx context.Context, msg string, err error) {
	if rp.logg != nil {
		rp.logg.Error(ctx, msg, err)
	}
}

// replayScope keeps one cashier's keys apart from another's.
func replayScope(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return "http:" + p.UserID.String()
	}
	return "http:anonymous"
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
