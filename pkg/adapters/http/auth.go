package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// ErrUnauthorized is returned for missing, invalid or expired tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator validates HS256 bearer tokens and maps their claims onto a session.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAuthenticator creates an authenticator. A non-empty issuer must match the iss claim.
func NewAuthenticator(secret []byte, issuer string) *Authenticator {
	return &Authenticator{secret: secret, issuer: issuer, now: time.Now}
}

// Parse validates token and returns the session it carries. The tenant_id claim is required.
func (a *Authenticator) Parse(token string) (domain.Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sess, err := domain.DecodeSession(claims)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if sess.TenantID == "" {
		return domain.Session{}, fmt.Errorf("%w: token has no tenant_id", ErrUnauthorized)
	}
	return sess, nil
}

// Issue signs a token for sess valid for ttl.
func (a *Authenticator) Issue(sess domain.Session, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{}
	for k, v := range sess.Map() {
		claims[k] = v
	}
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(ttl))
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type sessionKey struct{}

// SessionFrom returns the session of an authenticated request.
func SessionFrom(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domain.Session)
	return s, ok
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.session
		if s.auth != nil {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header", "")
				return
			}
			var err error
			if sess, err = s.auth.Parse(token); err != nil {
				s.logger.Debug("token rejected", "err", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token", "")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionOf(r *http.Request) domain.Session {
	sess, _ := SessionFrom(r.Context())
	return sess
}
