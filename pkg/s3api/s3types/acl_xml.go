// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package s3types

import "encoding/xml"

// AccessControlPolicy is the XML wire format for ACL documents, used both
// when a client PUTs a new ACL and when the gateway returns one.
type AccessControlPolicy struct {
	XMLName           xml.Name             `xml:"AccessControlPolicy"`
	Owner             Owner                `xml:"Owner"`
	AccessControlList AccessControlListXML `xml:"AccessControlList"`
}

// AccessControlListXML is the XML wrapper for grants in AccessControlPolicy
type AccessControlListXML struct {
	Grants []GrantXML `xml:"Grant"`
}

// GrantXML represents a grant in XML format
type GrantXML struct {
	Grantee    GranteeXML `xml:"Grantee"`
	Permission Permission `xml:"Permission"`
}

// GranteeXML represents a grantee in XML format with xsi:type attribute
type GranteeXML struct {
	XMLName      xml.Name `xml:"Grantee"`
	XsiType      string   `xml:"type,attr,omitempty"`
	ID           string   `xml:"ID,omitempty"`
	DisplayName  string   `xml:"DisplayName,omitempty"`
	EmailAddress string   `xml:"EmailAddress,omitempty"`
	URI          string   `xml:"URI,omitempty"`
}

// ToPolicy converts the internal representation to the XML wire format.
func (acl *AccessControlList) ToPolicy() *AccessControlPolicy {
	if acl == nil {
		return nil
	}

	policy := &AccessControlPolicy{Owner: acl.Owner}
	for _, grant := range acl.Grants {
		gx := GrantXML{
			Permission: grant.Permission,
			Grantee: GranteeXML{
				XsiType:      string(grant.Grantee.Type),
				ID:           grant.Grantee.ID,
				DisplayName:  grant.Grantee.DisplayName,
				EmailAddress: grant.Grantee.EmailAddress,
				URI:          grant.Grantee.URI,
			},
		}
		policy.AccessControlList.Grants = append(policy.AccessControlList.Grants, gx)
	}
	return policy
}

// Encode serializes the ACL to its XML document form, the representation
// kept in the store's attribute namespace.
func (acl *AccessControlList) Encode() ([]byte, error) {
	return xml.Marshal(acl.ToPolicy())
}

// DecodeACL parses a stored ACL document.
func DecodeACL(data []byte) (*AccessControlList, error) {
	return ParseACLXML(data)
}

// ParseACLXML decodes a client-supplied AccessControlPolicy document into
// the internal representation. The grantee variant is chosen by xsi:type;
// grantees without a recognized type but with a group URI or email address
// fall back to the matching variant.
func ParseACLXML(body []byte) (*AccessControlList, error) {
	var policy AccessControlPolicy
	if err := xml.Unmarshal(body, &policy); err != nil {
		return nil, err
	}

	acl := &AccessControlList{Owner: policy.Owner}
	for _, grant := range policy.AccessControlList.Grants {
		g := Grant{
			Permission: grant.Permission,
			Grantee: Grantee{
				ID:           grant.Grantee.ID,
				DisplayName:  grant.Grantee.DisplayName,
				EmailAddress: grant.Grantee.EmailAddress,
				URI:          grant.Grantee.URI,
			},
		}

		switch grant.Grantee.XsiType {
		case "CanonicalUser":
			g.Grantee.Type = GranteeTypeCanonicalUser
		case "Group":
			g.Grantee.Type = GranteeTypeGroup
		case "AmazonCustomerByEmail":
			g.Grantee.Type = GranteeTypeEmail
		default:
			switch {
			case grant.Grantee.URI != "":
				g.Grantee.Type = GranteeTypeGroup
			case grant.Grantee.EmailAddress != "":
				g.Grantee.Type = GranteeTypeEmail
			default:
				g.Grantee.Type = GranteeTypeCanonicalUser
			}
		}

		acl.Grants = append(acl.Grants, g)
	}

	return acl, nil
}
