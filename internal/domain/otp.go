package domain

import "time"

// OTPRecord is the per-phone verification row. Once verified, the hash
// and expiry are cleared and the record stays verified permanently.
type OTPRecord struct {
	PhoneNumber string
	OTPHash     string
	ExpiresAt   *time.Time
	IsVerified  bool
	VerifiedAt  *time.Time
}
