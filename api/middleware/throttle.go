package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/supserrr/vevurn-sub002/api/responses"
	"github.com/supserrr/vevurn-sub002/pkg/config"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// WindowCounter counts hits in fixed windows, see pkg/redis.
type WindowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Throttle limits attempts per client address and per submitted email in
// fixed windows. A zero limit turns that bucket off.
type Throttle struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func LoginThrottle(cfg config.AuthRateLimitConfig) Throttle {
	return Throttle{Name: "login", Window: cfg.LoginWindow, PerIP: cfg.LoginIPLimit, PerEmail: cfg.LoginEmailLimit}
}

func (t Throttle) active() bool {
	return t.Window > 0 && (t.PerIP > 0 || t.PerEmail > 0)
}

// Middleware enforces t against store. Emails are hashed before they reach
// a Redis key.
func (t Throttle) Middleware(store WindowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !t.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			buckets := make([]bucket, 0, 2)
			if ip := clientIP(r); t.PerIP > 0 && ip != "" {
				buckets = append(buckets, bucket{kind: "ip", id: ip, limit: t.PerIP})
			}
			if t.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := submittedEmail(body); email != "" {
					buckets = append(buckets, bucket{kind: "email", id: digest(email), limit: t.PerEmail})
				}
			}

			for _, b := range buckets {
				ok, hits, err := store.FixedWindowAllow(ctx, t.scope(b), int64(b.limit), t.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit"))
					return
				}
				if !ok {
					t.reject(ctx, logg, w, b, hits)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type bucket struct {
	kind  string
	id    string
	limit int
}

func (t Throttle) scope(b bucket) string {
	name := strings.ToLower(strings.TrimSpace(t.Name))
	if name == "" {
		name = "auth"
	}
	return name + ":" + b.kind + ":" + b.id
}

func (t Throttle) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, b bucket, hits int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"throttle": t.Name,
			"bucket":   b.kind,
			"key":      b.id,
			"hits":     hits,
			"limit":    b.limit,
		}), "request throttled")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(t.Window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP takes the first parseable X-Forwarded-For hop, then X-Real-IP,
// then the socket peer.
func clientIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.Unmap().String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func submittedEmail(body []byte) string {
	var form struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &form) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(form.Email))
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}
