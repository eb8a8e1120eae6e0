package middleware

import (
	"net/http"
	"sync"
	"time"

	apperrors "barberline/pkg/errors"
	httputil "barberline/pkg/http"
	"barberline/pkg/logger"
	"barberline/pkg/sanitizer"
)

const PhoneNumberHeader = "X-Phone-Number"

type PhoneExtractor func(r *http.Request) string

// PhoneRateLimiter bounds requests per caller number over a sliding window.
type PhoneRateLimiter struct {
	mu             sync.Mutex
	requests       map[string][]time.Time
	limit          int
	window         time.Duration
	phoneExtractor PhoneExtractor
	log            *logger.Logger
	stopCh         chan struct{}
	stopOnce       sync.Once
	now            func() time.Time
}

func NewPhoneRateLimiter(limit int, window time.Duration, extractor PhoneExtractor, log *logger.Logger) *PhoneRateLimiter {
	limiter := &PhoneRateLimiter{
		requests:       make(map[string][]time.Time),
		limit:          limit,
		window:         window,
		phoneExtractor: extractor,
		log:            log,
		stopCh:         make(chan struct{}),
		now:            time.Now,
	}

	go limiter.cleanup()

	return limiter
}

func (rl *PhoneRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for phone, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, phone)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PhoneRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *PhoneRateLimiter) Allow(phone string) bool {
	if phone == "" {
		return true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := rl.requests[phone][:0]
	for _, ts := range rl.requests[phone] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[phone] = valid
		return false
	}

	rl.requests[phone] = append(valid, now)
	return true
}

func PhoneRateLimit(limiter *PhoneRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			phone := extractPhoneNumber(r, limiter.phoneExtractor)

			if !limiter.Allow(phone) {
				rejectRateLimited(w, limiter.log, r, phone)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractPhoneNumber(r *http.Request, extractor PhoneExtractor) string {
	if extractor == nil {
		return r.Header.Get(PhoneNumberHeader)
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, phone string) {
	log.Warn("Rate limit exceeded",
		"request_id", requestIDFrom(r),
		"phone", phone,
		"path", r.URL.Path,
	)

	_ = httputil.WriteError(w, apperrors.RateLimited("Rate limit exceeded"))
}

// CallerPhoneExtractor keys webhooks on the caller's From number and API
// requests on X-Phone-Number. Numbers are normalized so formatting variants
// share one budget.
func CallerPhoneExtractor(r *http.Request) string {
	if phone := r.Header.Get(PhoneNumberHeader); phone != "" {
		return sanitizer.NormalizePhone(phone)
	}
	if extractContentType(r.Header.Get("Content-Type")) != ContentTypeForm {
		return ""
	}
	return sanitizer.NormalizePhone(r.PostFormValue("From"))
}
