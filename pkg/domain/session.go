package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Session keys written by the HTTP layer.
const (
	SessionTenantID = "tenant_id"
	SessionUserID   = "user_id"
	SessionEmail    = "email"
)

// Session is the typed view of State.SessionData.
type Session struct {
	TenantID string `mapstructure:"tenant_id"`
	UserID   string `mapstructure:"user_id"`
	Email    string `mapstructure:"email"`
}

// DecodeSession reads the known keys of a session map. Unknown keys are ignored and
// numeric ids are converted to strings.
func DecodeSession(data map[string]any) (Session, error) {
	var s Session
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return s, err
	}
	if err := dec.Decode(data); err != nil {
		return s, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Map converts the session back to SessionData form, omitting empty values.
func (s Session) Map() map[string]any {
	out := make(map[string]any, 3)
	if s.TenantID != "" {
		out[SessionTenantID] = s.TenantID
	}
	if s.UserID != "" {
		out[SessionUserID] = s.UserID
	}
	if s.Email != "" {
		out[SessionEmail] = s.Email
	}
	return out
}

// Tenant returns the tenant the state belongs to, or "" when unknown.
func (s State) Tenant() string {
	if v, ok := s.SessionData[SessionTenantID].(string); ok {
		return v
	}
	if v, ok := s.SessionData[SessionTenantID]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
