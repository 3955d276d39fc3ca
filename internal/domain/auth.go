package domain

import "time"

// OTP is a one-time login code issued to a mobile number.
type OTP struct {
	ID        int64
	Mobile    string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the code is no longer usable at now.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
