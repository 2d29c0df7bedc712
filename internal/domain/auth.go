package domain

import "time"

// AuthPhase models the phone/OTP sign-in lifecycle.
type AuthPhase string

const (
	AuthPhaseSignedOut AuthPhase = "signed_out"
	AuthPhaseCodeSent  AuthPhase = "code_sent"
	AuthPhaseSignedIn  AuthPhase = "signed_in"
)

// UserProfile is the signed-in user as reported by the backend.
type UserProfile struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// AuthSession holds the tokens issued after OTP verification.
type AuthSession struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	Profile      UserProfile `json:"profile"`
}

// Expired reports whether the access token is past its lifetime,
// with a safety margin applied.
func (s AuthSession) Expired(margin time.Duration) bool {
	if s.AccessToken == "" {
		return true
	}
	return !time.Now().Add(margin).Before(s.ExpiresAt)
}

// AuthState is the sign-in snapshot published to the UI.
type AuthState struct {
	Phase     AuthPhase    `json:"phase"`
	Profile   *UserProfile `json:"profile,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}
