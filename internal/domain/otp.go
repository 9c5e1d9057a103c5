package domain

import "time"

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
)

// StagedProfile is the unverified registration data held until the OTP is confirmed.
type StagedProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Challenge is one pending OTP verification.
type Challenge struct {
	Email    string
	Purpose  Purpose
	Code     string
	IssuedAt time.Time
	Staged   *StagedProfile
}
