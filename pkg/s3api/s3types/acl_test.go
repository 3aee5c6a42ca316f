// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package s3types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidCannedACL(t *testing.T) {
	t.Parallel()

	canned, err := ParseValidCannedACL("")
	require.NoError(t, err)
	assert.Equal(t, ACLPrivate, canned)

	canned, err = ParseValidCannedACL("public-read")
	require.NoError(t, err)
	assert.Equal(t, ACLPublicRead, canned)

	_, err = ParseValidCannedACL("bucket-owner-full-control")
	assert.Error(t, err)
}

func TestFromCannedACL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		canned     CannedACL
		wantGrants []Grant
	}{
		{
			name: "private is owner only",
			canned: ACLPrivate,
			wantGrants: []Grant{
				{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "owner", DisplayName: "Owner"}, Permission: PermissionFullControl},
			},
		},
		{
			name: "public-read adds AllUsers read",
			canned: ACLPublicRead,
			wantGrants: []Grant{
				{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "owner", DisplayName: "Owner"}, Permission: PermissionFullControl},
				{Grantee: Grantee{Type: GranteeTypeGroup, URI: AllUsersGroup}, Permission: PermissionRead},
			},
		},
		{
			name: "public-read-write adds AllUsers read and write",
			canned: ACLPublicReadWrite,
			wantGrants: []Grant{
				{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "owner", DisplayName: "Owner"}, Permission: PermissionFullControl},
				{Grantee: Grantee{Type: GranteeTypeGroup, URI: AllUsersGroup}, Permission: PermissionRead},
				{Grantee: Grantee{Type: GranteeTypeGroup, URI: AllUsersGroup}, Permission: PermissionWrite},
			},
		},
		{
			name: "authenticated-read adds AuthenticatedUsers read",
			canned: ACLAuthenticatedRead,
			wantGrants: []Grant{
				{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "owner", DisplayName: "Owner"}, Permission: PermissionFullControl},
				{Grantee: Grantee{Type: GranteeTypeGroup, URI: AuthenticatedUsersGroup}, Permission: PermissionRead},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			acl := FromCannedACL(tt.canned, "owner", "Owner")
			assert.Equal(t, Owner{ID: "owner", DisplayName: "Owner"}, acl.Owner)
			assert.Equal(t, tt.wantGrants, acl.Grants)
		})
	}
}

func TestEvaluateExactMatch(t *testing.T) {
	t.Parallel()

	// A FULL_CONTROL grant for alice; bob owns nothing here.
	acl := &AccessControlList{
		Owner: Owner{ID: "owner"},
		Grants: []Grant{
			{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "alice"}, Permission: PermissionFullControl},
		},
	}

	// Grant permissions match exactly: FULL_CONTROL does not stand in for
	// READ or WRITE.
	assert.True(t, acl.Evaluate("alice", true, PermissionFullControl))
	assert.False(t, acl.Evaluate("alice", true, PermissionRead))
	assert.False(t, acl.Evaluate("alice", true, PermissionWrite))

	// The owner has implicit access regardless of grants.
	assert.True(t, acl.Evaluate("owner", true, PermissionRead))
	assert.True(t, acl.Evaluate("owner", true, PermissionWrite))

	assert.False(t, acl.Evaluate("bob", true, PermissionRead))
}

func TestEvaluateGroups(t *testing.T) {
	t.Parallel()

	acl := FromCannedACL(ACLPublicRead, "owner", "Owner")

	// AllUsers matches the anonymous caller, but only for the granted
	// permission.
	assert.True(t, acl.Evaluate("anonymous", false, PermissionRead))
	assert.False(t, acl.Evaluate("anonymous", false, PermissionFullControl))
	assert.False(t, acl.Evaluate("anonymous", false, PermissionWrite))

	authACL := FromCannedACL(ACLAuthenticatedRead, "owner", "Owner")
	assert.True(t, authACL.Evaluate("alice", true, PermissionRead))
	assert.False(t, authACL.Evaluate("anonymous", false, PermissionRead))
}

func TestEvaluateNilACL(t *testing.T) {
	t.Parallel()

	var acl *AccessControlList
	assert.False(t, acl.Evaluate("alice", true, PermissionRead))
}

// fakeResolver resolves a fixed directory of accounts.
type fakeResolver struct {
	byID    map[string]string
	byEmail map[string]string
}

func (r *fakeResolver) AccountByID(_ context.Context, id string) (string, bool) {
	name, ok := r.byID[id]
	return name, ok
}

func (r *fakeResolver) AccountByEmail(_ context.Context, email string) (string, string, bool) {
	id, ok := r.byEmail[email]
	if !ok {
		return "", "", false
	}
	return id, r.byID[id], true
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		byID:    map[string]string{"owner": "Owner", "alice": "Alice"},
		byEmail: map[string]string{"alice@example.com": "alice"},
	}

	src := &AccessControlList{
		Owner: Owner{ID: "owner"},
		Grants: []Grant{
			{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "alice"}, Permission: PermissionRead},
			{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "ghost"}, Permission: PermissionWrite},
			{Grantee: Grantee{Type: GranteeTypeEmail, EmailAddress: "alice@example.com"}, Permission: PermissionWrite},
			{Grantee: Grantee{Type: GranteeTypeEmail, EmailAddress: "nobody@example.com"}, Permission: PermissionRead},
			{Grantee: Grantee{Type: GranteeTypeGroup, URI: AllUsersGroup}, Permission: PermissionRead},
			{Grantee: Grantee{Type: GranteeTypeGroup, URI: "http://example.com/groups/custom"}, Permission: PermissionRead},
		},
	}

	rebuilt, dropped, err := src.Rebuild(context.Background(), resolver)
	require.NoError(t, err)

	assert.Equal(t, Owner{ID: "owner", DisplayName: "Owner"}, rebuilt.Owner)
	require.Len(t, rebuilt.Grants, 3)

	assert.Equal(t, "alice", rebuilt.Grants[0].Grantee.ID)
	assert.Equal(t, PermissionRead, rebuilt.Grants[0].Permission)

	// Email grant converted to a canonical grant.
	assert.Equal(t, GranteeTypeCanonicalUser, rebuilt.Grants[1].Grantee.Type)
	assert.Equal(t, "alice", rebuilt.Grants[1].Grantee.ID)
	assert.Equal(t, PermissionWrite, rebuilt.Grants[1].Permission)

	assert.Equal(t, GranteeTypeGroup, rebuilt.Grants[2].Grantee.Type)
	assert.Equal(t, AllUsersGroup, rebuilt.Grants[2].Grantee.URI)

	require.Len(t, dropped, 3)
	assert.Equal(t, "ghost", dropped[0].Grant.Grantee.ID)
	assert.Equal(t, "nobody@example.com", dropped[1].Grant.Grantee.EmailAddress)
	assert.Equal(t, "http://example.com/groups/custom", dropped[2].Grant.Grantee.URI)
}

func TestRebuildUnresolvableOwner(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{byID: map[string]string{"alice": "Alice"}}

	src := &AccessControlList{
		Owner: Owner{ID: "ghost"},
		Grants: []Grant{
			{Grantee: Grantee{Type: GranteeTypeCanonicalUser, ID: "alice"}, Permission: PermissionRead},
		},
	}

	_, _, err := src.Rebuild(context.Background(), resolver)
	assert.Error(t, err)
}

func TestParseACLXMLRoundTrip(t *testing.T) {
	t.Parallel()

	acl := FromCannedACL(ACLPublicRead, "owner", "Owner")
	raw, err := acl.Encode()
	require.NoError(t, err)

	decoded, err := DecodeACL(raw)
	require.NoError(t, err)
	assert.Equal(t, acl.Owner, decoded.Owner)
	assert.Equal(t, acl.Grants, decoded.Grants)
}

func TestParseACLXMLMalformed(t *testing.T) {
	t.Parallel()

	_, err := ParseACLXML([]byte("<AccessControlPolicy><Owner>"))
	assert.Error(t, err)

	_, err = ParseACLXML([]byte("not xml at all"))
	assert.Error(t, err)
}
