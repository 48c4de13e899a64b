package auth

import "github.com/jrsteele09/go-console-client/credentials"

// Session is the ephemeral state between the email step and the OTP step of
// login. It is held by the caller only and never persisted.
type Session struct {
	SessionID string `json:"session_id"`
}

type loginRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	SessionID string `json:"session_id"`
	OTPCode   string `json:"otp_code"`
}

type verifyOTPResponse struct {
	AccessToken  string                  `json:"access_token"`
	RefreshToken string                  `json:"refresh_token"`
	User         credentials.UserProfile `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`

	// Only set when the server rotates refresh tokens; otherwise the stored
	// one stays valid.
	RefreshToken string `json:"refresh_token,omitempty"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
