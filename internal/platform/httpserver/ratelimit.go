package httpserver

import (
	"net"
	"net/http"
)

func (s *Server) rateLimitByIP(purpose string) func(http.Handler) http.Handler {
	return s.rateLimit(purpose, clientIP)
}

// rateLimitByToken must run after requireVoter.
func (s *Server) rateLimitByToken(purpose string) func(http.Handler) http.Handler {
	return s.rateLimit(purpose, func(r *http.Request) string {
		return voterFrom(r.Context()).TokenID
	})
}

// rateLimit runs next only when the limiter admits the request. A limiter
// that cannot count at all lets the request through.
func (s *Server) rateLimit(purpose string, identity func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			decision, err := s.limiter.Allow(r.Context(), purpose, identity(r))
			if err != nil {
				s.logger.Error("rate limiter unavailable",
					"event", "http_rate_limit_unavailable",
					"module", moduleName,
					"layer", "platform",
					"purpose", purpose,
					"error", err.Error(),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				writeRateLimited(w, decision.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads RemoteAddr, which middleware.RealIP has already rewritten
// from the proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

