package domain

import "context"

// AccountStatus is the recovery-relevant view of an account.
type AccountStatus struct {
	AccountID string `json:"account_id"`
	Disabled  bool   `json:"disabled"`
	Suspended bool   `json:"suspended"`

	// DoNotConceal turns membership concealment off for this account when it
	// is blocked, so support flows can tell the user why recovery failed.
	DoNotConceal bool `json:"do_not_conceal"`
}

// IsBlocked reports whether recovery must be refused for the account.
func (s *AccountStatus) IsBlocked(allowSuspended bool) bool {
	if s.Disabled {
		return true
	}
	return s.Suspended && !allowSuspended
}

// AccountStore owns the accounts under recovery.
type AccountStore interface {
	// GetStatus returns ErrAccountMissing when the account no longer exists
	GetStatus(ctx context.Context, accountID string) (*AccountStatus, error)

	// SetPassword hashes and stores a new password for the account
	SetPassword(ctx context.Context, accountID, newPassword string) error
}
