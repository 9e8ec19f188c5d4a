package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"chatrelay/gateway/pkg/config"
)

// CORSHeaders builds the header set added to every API response. It returns
// nil when CORS is disabled.
func CORSHeaders(cfg config.CORSConfig) http.Header {
	if !cfg.Enabled {
		return nil
	}

	h := http.Header{}
	origin := cfg.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	h.Set("Access-Control-Allow-Origin", origin)
	if len(cfg.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
	}
	if len(cfg.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	}
	h.Set("Access-Control-Expose-Headers", RequestIDHeader)
	if cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
	}
	if origin != "*" {
		h.Add("Vary", "Origin")
	}
	return h
}

// CORS adds headers to every response and answers preflight OPTIONS
// requests with an empty 200. A nil header set disables it.
func CORS(headers http.Header) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if headers == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, vs := range headers {
				w.Header()[k] = append([]string(nil), vs...)
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
