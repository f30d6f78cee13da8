package profile

import "time"

// RoleAdmin marks office administrators. Admins bypass phone verification and
// cannot be approved/deactivated from the roster.
const RoleAdmin = "admin"

// Profile is the application record keyed 1:1 by identity id. The auth flow
// reads the verification fields and flips PhoneVerified; everything else is
// mutated by the admin roster.
type Profile struct {
	ID                string
	FullName          string
	MobileNumber      string
	Role              string
	VerificationCode  *string
	PhoneVerified     bool
	IsApproved        bool
	IsActive          bool
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin reports whether the profile belongs to an administrator.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Patch carries partial profile updates; nil fields are left untouched.
type Patch struct {
	FullName          *string
	PhoneVerified     *bool
	IsApproved        *bool
	IsActive          *bool
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
}
