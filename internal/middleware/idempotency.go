package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/Farhad2590/traveltrade-backend/internal/api/httpx"
	"github.com/go-redis/redis/v8"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	idempotencyCacheTTL = 24 * time.Hour
	idempotencyLockTTL  = 10 * time.Second
	idempotencyPrefix   = "idempotency:"
	idempotencyLockPfx  = "idempotency-lock:"
)

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the cached response for a repeated Idempotency-Key
// and holds a short redis lock against concurrent duplicates. Requests
// without the header pass through untouched.
func Idempotency(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			cacheKey := idempotencyPrefix + key
			lockKey := idempotencyLockPfx + key

			if cached, err := rdb.Get(ctx, cacheKey).Result(); err == nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("X-Idempotency-Hit", "true")
				_, _ = w.Write([]byte(cached))
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", idempotencyLockTTL).Result()
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "idempotency store unavailable", nil)
				return
			}
			if !acquired {
				httpx.WriteError(w, http.StatusConflict, "conflict", "request with this idempotency key is in flight", nil)
				return
			}
			defer func() {
				if err := rdb.Del(ctx, lockKey).Err(); err != nil {
					slog.Error("idempotency unlock", "key", key, "err", err)
				}
			}()

			rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 {
				if err := rdb.Set(ctx, cacheKey, rec.body.String(), idempotencyCacheTTL).Err(); err != nil {
					slog.Error("idempotency cache", "key", key, "err", err)
				}
			}
		})
	}
}
