package domain

import "time"

// UserStatus defines the possible statuses of a user account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusLocked   UserStatus = "LOCKED"
	UserStatusDisabled UserStatus = "DISABLED"
	UserStatusPending  UserStatus = "PENDING_ACTIVATION"
)

// UserRole is the coarse role attached to a user. Fine-grained permissions
// are derived from it, see roles.go.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleManager UserRole = "MANAGER"
	RoleUser    UserRole = "USER"
)

// User represents a user account in the identity store.
type User struct {
	ID                  string     `bson:"_id,omitempty"`
	Email               string     `bson:"email"`
	PasswordHash        string     `bson:"password_hash"`
	Status              UserStatus `bson:"status"`
	Role                UserRole   `bson:"role"`
	FirstName           string     `bson:"first_name,omitempty"`
	LastName            string     `bson:"last_name,omitempty"`
	Picture             string     `bson:"picture,omitempty"`
	EmailVerified       bool       `bson:"email_verified"`
	PhoneNumber         string     `bson:"phone_number,omitempty"`
	OrganizationID      string     `bson:"organization_id,omitempty"`
	TenantID            string     `bson:"tenant_id,omitempty"`
	Memberships         []string   `bson:"memberships,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
	LastLoginAt         *time.Time `bson:"last_login_at,omitempty"`
	FailedLoginAttempts int        `bson:"failed_login_attempts,omitempty"`
	LockedUntil         *time.Time `bson:"locked_until,omitempty"`

	// MFA state. Secret and backup codes are only meaningful while
	// MfaEnabled is true or an enrollment is pending verification.
	MfaEnabled    bool       `bson:"mfa_enabled"`
	MfaMethod     MfaMethod  `bson:"mfa_method,omitempty"`
	MfaSecret     string     `bson:"mfa_secret,omitempty"`
	BackupCodes   []string   `bson:"backup_codes,omitempty"`
	MfaPendingAt  *time.Time `bson:"mfa_pending_at,omitempty"`
	LastMfaUsedAt *time.Time `bson:"last_mfa_used_at,omitempty"`
}

// DisplayName returns the user's presentable name for ID token claims.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// IsLocked reports whether a lockout window is still in effect.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
