package types

import "time"

// Role names the authorization level carried inside a session token.
type Role string

const (
	// RoleApplicant is a prospective student going through onboarding.
	RoleApplicant Role = "applicant"

	// RoleParent is a parent acting on behalf of an applicant.
	RoleParent Role = "parent"

	// RoleCommission is administrative staff of the admissions commission.
	RoleCommission Role = "commission"
)

// User represents an account in the system.
// It contains identity, the coin balance, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display name, entered at registration.
	Name string `json:"name" db:"name"`

	// Phone is the user's contact phone number, if provided.
	// Stored normalized, without separators.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Coins is the user's current coin balance. Never negative.
	// The balance is mutated only through the purchase flow (debit)
	// and the order lifecycle (credit on cancellation).
	Coins int `json:"coins" db:"coins"`

	// Verified indicates whether the user's identity has been confirmed
	// by commission staff.
	Verified bool `json:"verified" db:"verified"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
