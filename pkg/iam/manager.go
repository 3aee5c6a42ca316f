// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"context"
)

// Manager fronts the credential store for the request pipeline.
type Manager struct {
	store CredentialStore
}

// NewManager creates a manager over the given store.
func NewManager(store CredentialStore) *Manager {
	return &Manager{store: store}
}

// LookupByAccessKey retrieves identity and credential by access key.
func (m *Manager) LookupByAccessKey(ctx context.Context, accessKey string) (*Identity, *Credential, bool) {
	identity, cred, err := m.store.GetUserByAccessKey(ctx, accessKey)
	if err != nil {
		return nil, nil, false
	}
	if !cred.IsActive() || identity.Disabled {
		return nil, nil, false
	}
	return identity, cred, true
}

// Anonymous returns the fixed anonymous identity.
func (m *Manager) Anonymous() *Identity {
	return identityAnonymous
}

// AccountByID resolves a canonical user id to its display name. Implements
// the resolver used when a client-supplied ACL document is rebuilt.
func (m *Manager) AccountByID(ctx context.Context, id string) (string, bool) {
	identity, err := m.store.GetUserByAccountID(ctx, id)
	if err != nil || identity.Disabled || identity.Account == nil {
		return "", false
	}
	return identity.Account.DisplayName, true
}

// AccountByEmail resolves an email address to a canonical user id.
func (m *Manager) AccountByEmail(ctx context.Context, email string) (string, string, bool) {
	identity, err := m.store.GetUserByEmail(ctx, email)
	if err != nil || identity.Disabled || identity.Account == nil {
		return "", "", false
	}
	return identity.Account.ID, identity.Account.DisplayName, true
}
