package httpserver

import (
	"context"
	"net/http"
	"strings"

	"ballot/contexts/elections/election-service/domain/entities"
)

const (
	voterCookieName = "ballot_voter"
	voterSecretKey  = "secret"
)

type principalKey struct{}

type voterKey struct{}

func withAdmin(ctx context.Context, principal entities.AdminPrincipal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

func adminFrom(ctx context.Context) entities.AdminPrincipal {
	principal, _ := ctx.Value(principalKey{}).(entities.AdminPrincipal)
	return principal
}

func withVoter(ctx context.Context, voter entities.VoterPrincipal) context.Context {
	return context.WithValue(ctx, voterKey{}, voter)
}

func voterFrom(ctx context.Context) entities.VoterPrincipal {
	voter, _ := ctx.Value(voterKey{}).(entities.VoterPrincipal)
	return voter
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.election.Handler.AuthenticateAdmin(r.Context(), bearerToken(r))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAdmin(r.Context(), principal)))
	})
}

// requireVoter accepts the session secret as a bearer token or from the
// signed cookie. Any failure clears the cookie.
func (s *Server) requireVoter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		voter, err := s.election.Handler.AuthenticateVoter(r.Context(), s.voterSecret(r))
		if err != nil {
			s.clearVoterCookie(w, r)
			s.writeDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withVoter(r.Context(), voter)))
	})
}

func (s *Server) voterSecret(r *http.Request) string {
	if secret := bearerToken(r); secret != "" {
		return secret
	}
	session, err := s.cookies.Get(r, voterCookieName)
	if err != nil {
		return ""
	}
	secret, _ := session.Values[voterSecretKey].(string)
	return secret
}

func (s *Server) setVoterCookie(w http.ResponseWriter, r *http.Request, secret string) error {
	session, _ := s.cookies.New(r, voterCookieName)
	session.Values[voterSecretKey] = secret
	return session.Save(r, w)
}

func (s *Server) clearVoterCookie(w http.ResponseWriter, r *http.Request) {
	session, _ := s.cookies.New(r, voterCookieName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		s.logger.Warn("clearing voter cookie failed",
			"event", "http_voter_cookie_clear_failed",
			"module", moduleName,
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
