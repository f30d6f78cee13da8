package identity

import "time"

// Identity is an authenticated principal issued by the hosted identity
// provider. The gateway never creates or mutates one directly; it reads it,
// hands it to the success path and snapshots it for offline login.
type Identity struct {
	ID           string    `json:"id"`
	LoginKey     string    `json:"login_key"`
	FullName     string    `json:"full_name,omitempty"`
	MobileNumber string    `json:"mobile_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Metadata accompanies a sign-up call. The provider's own trigger copies it
// into the new profile row and generates the verification code; the gateway
// never generates codes itself.
type Metadata struct {
	FullName     string `json:"full_name"`
	MobileNumber string `json:"mobile_number"`
}
