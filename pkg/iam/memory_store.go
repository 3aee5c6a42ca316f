package iam

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of CredentialStore
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*Identity // username -> Identity
	accessKeys map[string]string    // accessKey -> username
	accountIDs map[string]string    // canonical user id -> username
	emails     map[string]string    // lowercased email -> username
}

// NewMemoryStore creates a new in-memory credential store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*Identity),
		accessKeys: make(map[string]string),
		accountIDs: make(map[string]string),
		emails:     make(map[string]string),
	}
}

func (s *MemoryStore) GetUserByAccessKey(ctx context.Context, accessKey string) (*Identity, *Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, exists := s.accessKeys[accessKey]
	if !exists {
		return nil, nil, ErrAccessKeyNotFound
	}

	identity, exists := s.users[username]
	if !exists {
		return nil, nil, ErrUserNotFound
	}

	for _, cred := range identity.Credentials {
		if cred.AccessKey == accessKey {
			return identity, cred, nil
		}
	}

	return nil, nil, ErrAccessKeyNotFound
}

func (s *MemoryStore) GetUserByAccountID(ctx context.Context, accountID string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, exists := s.accountIDs[accountID]
	if !exists {
		return nil, ErrUserNotFound
	}
	identity, exists := s.users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return identity, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, exists := s.emails[strings.ToLower(email)]
	if !exists {
		return nil, ErrUserNotFound
	}
	identity, exists := s.users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return identity, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[identity.Name]; exists {
		return ErrUserAlreadyExists
	}

	s.users[identity.Name] = identity

	for _, cred := range identity.Credentials {
		s.accessKeys[cred.AccessKey] = identity.Name
	}
	if identity.Account != nil {
		s.accountIDs[identity.Account.ID] = identity.Name
		if identity.Account.EmailAddress != "" {
			s.emails[strings.ToLower(identity.Account.EmailAddress)] = identity.Name
		}
	}

	return nil
}
