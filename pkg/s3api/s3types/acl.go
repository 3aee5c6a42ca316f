package s3types

import (
	"context"
	"fmt"
)

// Canned ACL types
type CannedACL string

const (
	ACLPrivate           CannedACL = "private"
	ACLPublicRead        CannedACL = "public-read"
	ACLPublicReadWrite   CannedACL = "public-read-write"
	ACLAuthenticatedRead CannedACL = "authenticated-read"
)

func (ca CannedACL) String() string {
	return string(ca)
}

// ParseValidCannedACL validates a canned ACL name. The empty string is
// accepted and treated as private.
func ParseValidCannedACL(input string) (CannedACL, error) {
	switch input {
	case "":
		return ACLPrivate, nil
	case ACLPrivate.String(),
		ACLPublicRead.String(),
		ACLPublicReadWrite.String(),
		ACLAuthenticatedRead.String():
		return CannedACL(input), nil
	default:
		return "", fmt.Errorf("invalid canned ACL: %s", input)
	}
}

// Predefined ACL group URIs
const (
	AllUsersGroup           = "http://acs.amazonaws.com/groups/global/AllUsers"
	AuthenticatedUsersGroup = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

// ACL permission types. Each grant carries a single permission value,
// mirroring the wire format; the same grantee may appear in several grants.
type Permission string

const (
	PermissionFullControl Permission = "FULL_CONTROL"
	PermissionRead        Permission = "READ"
	PermissionWrite       Permission = "WRITE"
	PermissionReadACP     Permission = "READ_ACP"
	PermissionWriteACP    Permission = "WRITE_ACP"
)

// GranteeType identifies how a grantee is specified
type GranteeType string

const (
	GranteeTypeCanonicalUser GranteeType = "CanonicalUser"
	GranteeTypeGroup         GranteeType = "Group"
	GranteeTypeEmail         GranteeType = "AmazonCustomerByEmail"
)

// Owner identifies the owner of an object or bucket
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName,omitempty"`
}

// Grantee identifies who receives the permission
type Grantee struct {
	Type         GranteeType `xml:"type,attr"`
	ID           string      `xml:"ID,omitempty"`
	DisplayName  string      `xml:"DisplayName,omitempty"`
	EmailAddress string      `xml:"EmailAddress,omitempty"`
	URI          string      `xml:"URI,omitempty"`
}

// Grant represents a single permission grant to a grantee
type Grant struct {
	Grantee    Grantee    `xml:"Grantee"`
	Permission Permission `xml:"Permission"`
}

// AccessControlList is the internal ACL representation: exactly one owner
// plus an ordered list of single-permission grants.
type AccessControlList struct {
	Owner  Owner   `xml:"Owner"`
	Grants []Grant `xml:"AccessControlList>Grant"`
}

// Evaluate checks whether the account holds the required permission.
//
// A grant matches only when its permission is exactly equal to the required
// one: FULL_CONTROL does not imply READ or WRITE. The AllUsers group matches
// every caller, AuthenticatedUsers any non-anonymous caller. The owner of
// the ACL has implicit access regardless of grants.
func (acl *AccessControlList) Evaluate(accountID string, isAuthenticated bool, required Permission) bool {
	if acl == nil {
		return false
	}

	for _, grant := range acl.Grants {
		if grant.Permission != required {
			continue
		}

		switch grant.Grantee.Type {
		case GranteeTypeCanonicalUser:
			if grant.Grantee.ID == accountID {
				return true
			}
		case GranteeTypeGroup:
			switch grant.Grantee.URI {
			case AllUsersGroup:
				return true
			case AuthenticatedUsersGroup:
				if isAuthenticated {
					return true
				}
			}
		}
	}

	return acl.Owner.ID == accountID
}

// NewPrivateACL creates a private ACL owned by the given account
func NewPrivateACL(ownerID, ownerDisplayName string) *AccessControlList {
	return &AccessControlList{
		Owner: Owner{
			ID:          ownerID,
			DisplayName: ownerDisplayName,
		},
		Grants: []Grant{
			{
				Grantee: Grantee{
					Type:        GranteeTypeCanonicalUser,
					ID:          ownerID,
					DisplayName: ownerDisplayName,
				},
				Permission: PermissionFullControl,
			},
		},
	}
}

// FromCannedACL expands a canned ACL into an owner FULL_CONTROL grant plus
// the group grants the template names.
func FromCannedACL(canned CannedACL, ownerID, ownerDisplayName string) *AccessControlList {
	acl := NewPrivateACL(ownerID, ownerDisplayName)

	switch canned {
	case ACLPublicRead:
		acl.Grants = append(acl.Grants, Grant{
			Grantee:    Grantee{Type: GranteeTypeGroup, URI: AllUsersGroup},
			Permission: PermissionRead,
		})
	case ACLPublicReadWrite:
		acl.Grants = append(acl.Grants,
			Grant{Grantee: Grantee{Type: GranteeTypeGroup, URI: AllUsersGroup}, Permission: PermissionRead},
			Grant{Grantee: Grantee{Type: GranteeTypeGroup, URI: AllUsersGroup}, Permission: PermissionWrite},
		)
	case ACLAuthenticatedRead:
		acl.Grants = append(acl.Grants, Grant{
			Grantee:    Grantee{Type: GranteeTypeGroup, URI: AuthenticatedUsersGroup},
			Permission: PermissionRead,
		})
	}

	return acl
}

// AccountResolver resolves grantee identities against the credential
// directory during an ACL rebuild.
type AccountResolver interface {
	// AccountByID returns the display name for a canonical user id.
	AccountByID(ctx context.Context, id string) (displayName string, ok bool)
	// AccountByEmail resolves an email address to a canonical user id.
	AccountByEmail(ctx context.Context, email string) (id, displayName string, ok bool)
}

// DroppedGrant describes a grant removed during a rebuild.
type DroppedGrant struct {
	Grant  Grant
	Reason string
}

// Rebuild re-validates a client-supplied ACL against the credential
// directory. CanonicalUser grants whose id does not resolve are dropped,
// EmailUser grants are converted to CanonicalUser grants via an email
// lookup (and dropped when the email does not resolve), and group grants
// with an unrecognized URI are dropped. Dropping a grant is non-fatal; the
// dropped grants are returned so the caller can log them.
//
// The owner is independently re-resolved from the source document and must
// exist, otherwise the rebuild fails.
func (acl *AccessControlList) Rebuild(ctx context.Context, resolver AccountResolver) (*AccessControlList, []DroppedGrant, error) {
	ownerName, ok := resolver.AccountByID(ctx, acl.Owner.ID)
	if !ok {
		return nil, nil, fmt.Errorf("acl owner %q does not resolve", acl.Owner.ID)
	}

	out := &AccessControlList{
		Owner: Owner{ID: acl.Owner.ID, DisplayName: ownerName},
	}

	var dropped []DroppedGrant
	for _, grant := range acl.Grants {
		switch grant.Grantee.Type {
		case GranteeTypeCanonicalUser:
			name, ok := resolver.AccountByID(ctx, grant.Grantee.ID)
			if !ok {
				dropped = append(dropped, DroppedGrant{Grant: grant, Reason: "unresolvable canonical user"})
				continue
			}
			out.Grants = append(out.Grants, Grant{
				Grantee: Grantee{
					Type:        GranteeTypeCanonicalUser,
					ID:          grant.Grantee.ID,
					DisplayName: name,
				},
				Permission: grant.Permission,
			})
		case GranteeTypeEmail:
			id, name, ok := resolver.AccountByEmail(ctx, grant.Grantee.EmailAddress)
			if !ok {
				dropped = append(dropped, DroppedGrant{Grant: grant, Reason: "unresolvable email"})
				continue
			}
			out.Grants = append(out.Grants, Grant{
				Grantee: Grantee{
					Type:        GranteeTypeCanonicalUser,
					ID:          id,
					DisplayName: name,
				},
				Permission: grant.Permission,
			})
		case GranteeTypeGroup:
			if grant.Grantee.URI != AllUsersGroup && grant.Grantee.URI != AuthenticatedUsersGroup {
				dropped = append(dropped, DroppedGrant{Grant: grant, Reason: "unrecognized group URI"})
				continue
			}
			out.Grants = append(out.Grants, grant)
		default:
			dropped = append(dropped, DroppedGrant{Grant: grant, Reason: "unknown grantee type"})
		}
	}

	return out, dropped, nil
}
