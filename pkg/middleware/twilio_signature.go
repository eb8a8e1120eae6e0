package middleware

import (
	"net/http"
	"strings"

	apperrors "barberline/pkg/errors"
	httputil "barberline/pkg/http"
	"barberline/pkg/logger"

	twilioclient "github.com/twilio/twilio-go/client"
)

const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignatureVerification rejects requests under the protected path
// prefixes whose X-Twilio-Signature does not match. Twilio signs the public
// URL it called, so the URL is rebuilt from publicBaseURL rather than from
// the request, which may have passed through a proxy.
func TwilioSignatureVerification(authToken, publicBaseURL string, log *logger.Logger, protected ...string) func(http.Handler) http.Handler {
	validator := twilioclient.NewRequestValidator(authToken)
	base := strings.TrimRight(publicBaseURL, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasAnyPrefix(r.URL.Path, protected) {
				next.ServeHTTP(w, r)
				return
			}

			signature := r.Header.Get(TwilioSignatureHeader)
			if signature == "" {
				logAndReject(w, log, r, "Missing X-Twilio-Signature header")
				return
			}

			if err := r.ParseForm(); err != nil {
				logAndReject(w, log, r, "Failed to parse webhook form")
				return
			}

			if !validator.Validate(base+r.URL.RequestURI(), formParams(r), signature) {
				logAndReject(w, log, r, "Invalid webhook signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// formParams flattens the POST body. Twilio never repeats a parameter name in
// voice webhooks, so the first value is the only one.
func formParams(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func logAndReject(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Twilio webhook verification failed",
		"request_id", requestIDFrom(r),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	_ = httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
}
