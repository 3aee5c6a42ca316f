package iam

import "time"

// Credential represents an access key and secret key pair for S3 authentication
type Credential struct {
	AccessKey string     `json:"access_key"`
	SecretKey string     `json:"secret_key"`
	Status    string     `json:"status,omitempty"` // "Active" or "Inactive"
	CreatedAt time.Time  `json:"created_at,omitzero"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsActive returns true if the credential is active and not expired
func (c *Credential) IsActive() bool {
	if c.Status != "" && c.Status != "Active" {
		return false
	}
	if c.ExpiresAt != nil && time.Now().After(*c.ExpiresAt) {
		return false
	}
	return true
}

// Account represents an S3 account with ownership identity
type Account struct {
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email_address,omitempty"`
	ID           string `json:"id"` // Canonical user ID (used in ACLs)
}

// Identity represents an S3 user/principal with credentials
type Identity struct {
	Name        string        `json:"name"`
	Account     *Account      `json:"account,omitempty"`
	Credentials []*Credential `json:"credentials,omitempty"`
	Disabled    bool          `json:"disabled,omitempty"`
}

// IsAnonymous reports whether the identity is the fixed anonymous principal.
func (i *Identity) IsAnonymous() bool {
	return i == nil || i.Account == nil || i.Account.ID == AccountAnonymous.ID
}

// AccountID returns the canonical user id, or the anonymous id when unset.
func (i *Identity) AccountID() string {
	if i == nil || i.Account == nil {
		return AccountAnonymous.ID
	}
	return i.Account.ID
}

// AccountAnonymous is the fixed identity resolved for requests carrying no
// credentials. Authorization for anonymous callers is deferred entirely to
// ACL evaluation.
var AccountAnonymous = &Account{
	DisplayName: "anonymous",
	ID:          "anonymous",
}

var identityAnonymous = &Identity{
	Name:    "anonymous",
	Account: AccountAnonymous,
}
