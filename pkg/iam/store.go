package iam

import (
	"context"
	"errors"
)

var (
	ErrAccessKeyNotFound = errors.New("access key not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// CredentialStore is the credential directory backing the gateway.
type CredentialStore interface {
	// GetUserByAccessKey returns the identity holding the access key and the
	// matching credential.
	GetUserByAccessKey(ctx context.Context, accessKey string) (*Identity, *Credential, error)

	// GetUserByAccountID returns the identity with the canonical user id.
	GetUserByAccountID(ctx context.Context, accountID string) (*Identity, error)

	// GetUserByEmail returns the identity registered under the email address.
	GetUserByEmail(ctx context.Context, email string) (*Identity, error)

	// CreateUser registers a new identity with its credentials.
	CreateUser(ctx context.Context, identity *Identity) error
}
