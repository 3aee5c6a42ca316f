// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/petra-storage/petra/pkg/gateway/filter"
	"github.com/petra-storage/petra/pkg/iam"
	"github.com/petra-storage/petra/pkg/s3api/args"
	"github.com/petra-storage/petra/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessKey = "PETRATESTACCESSKEY"
	testSecretKey = "petra-test-secret-key"
	testAccountID = "test-account"

	otherAccessKey = "PETRAOTHERACCESSKEY"
	otherSecretKey = "petra-other-secret-key"
	otherAccountID = "other-account"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	backend, err := store.OpenLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	credStore := iam.NewMemoryStore()
	require.NoError(t, credStore.CreateUser(context.Background(), &iam.Identity{
		Name:    "tester",
		Account: &iam.Account{ID: testAccountID, DisplayName: "Tester", EmailAddress: "tester@example.com"},
		Credentials: []*iam.Credential{
			{AccessKey: testAccessKey, SecretKey: testSecretKey},
		},
	}))
	require.NoError(t, credStore.CreateUser(context.Background(), &iam.Identity{
		Name:    "other",
		Account: &iam.Account{ID: otherAccountID, DisplayName: "Other", EmailAddress: "other@example.com"},
		Credentials: []*iam.Credential{
			{AccessKey: otherAccessKey, SecretKey: otherSecretKey},
		},
	}))
	iamManager := iam.NewManager(credStore)

	chain := filter.NewChain()
	chain.AddFilter(filter.NewRequestIDFilter())
	chain.AddFilter(filter.NewParserFilter())
	chain.AddFilter(filter.NewAuthenticationFilter(iamManager))
	chain.AddFilter(filter.NewAuthorizationFilter(backend))

	return NewGateway(backend, iamManager, chain)
}

// signRequest applies header-based Signature V2 credentials to a request.
func signRequest(req *http.Request, accessKey, secretKey string) {
	date := "Tue, 27 Mar 2007 19:36:42 +0000"
	req.Header.Set("Date", date)

	var amzBlock strings.Builder
	var names []string
	amz := make(map[string]string)
	for name, values := range req.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-") {
			amz[lower] = strings.Join(values, ",")
			names = append(names, lower)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		amzBlock.WriteString(name + ":" + amz[name] + "\n")
	}

	resource := req.URL.Path
	if sub := args.Parse(req.URL.RawQuery).SubResource(); sub != "" {
		resource += "?" + sub
	}

	stringToSign := req.Method + "\n" +
		req.Header.Get("Content-MD5") + "\n" +
		req.Header.Get("Content-Type") + "\n" +
		date + "\n" +
		amzBlock.String() +
		resource

	h := hmac.New(sha1.New, []byte(secretKey))
	h.Write([]byte(stringToSign))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))

	req.Header.Set("Authorization", "AWS "+accessKey+":"+sig)
}

func doRequest(t *testing.T, g *Gateway, method, target string, body []byte, sign bool, prep ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://s3.example.com"+target, reader)
	for _, p := range prep {
		p(req)
	}
	if sign {
		signRequest(req, testAccessKey, testSecretKey)
	}

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)
	return rec
}

func TestBucketEndToEnd(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	// Create the bucket.
	rec := doRequest(t, g, "PUT", "/mybucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The service listing now carries it.
	rec = doRequest(t, g, "GET", "/", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<ListAllMyBucketsResult>")
	assert.Contains(t, rec.Body.String(), "<Name>mybucket</Name>")
	assert.Contains(t, rec.Body.String(), "<ID>"+testAccountID+"</ID>")

	// Store an object in it.
	rec = doRequest(t, g, "PUT", "/mybucket/hello.txt", []byte("hello world"), true, func(req *http.Request) {
		req.Header.Set("Content-Type", "text/plain")
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := md5.Sum([]byte("hello world"))
	assert.Equal(t, "\""+hex.EncodeToString(sum[:])+"\"", rec.Header().Get("ETag"))

	// Deleting a non-empty bucket conflicts.
	rec = doRequest(t, g, "DELETE", "/mybucket", nil, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>BucketNotEmpty</Code>")

	// Read the object back.
	rec = doRequest(t, g, "GET", "/mybucket/hello.txt", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))

	// Empty it, then delete it.
	rec = doRequest(t, g, "DELETE", "/mybucket/hello.txt", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, g, "DELETE", "/mybucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, g, "GET", "/", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<Name>mybucket</Name>")
}

func TestAuthenticationFailures(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	t.Run("bad signature", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "http://s3.example.com/mybucket", nil)
		req.Header.Set("Date", "Tue, 27 Mar 2007 19:36:42 +0000")
		req.Header.Set("Authorization", "AWS "+testAccessKey+":bm90LXRoZS1zaWduYXR1cmU=")
		rec := httptest.NewRecorder()
		g.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "<Code>SignatureDoesNotMatch</Code>")
	})

	t.Run("unknown access key", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "http://s3.example.com/mybucket", nil)
		req.Header.Set("Date", "Tue, 27 Mar 2007 19:36:42 +0000")
		req.Header.Set("Authorization", "AWS NOSUCHKEY:c2lnbmF0dXJl")
		rec := httptest.NewRecorder()
		g.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "<Code>InvalidAccessKeyId</Code>")
	})

	t.Run("expired presigned request", func(t *testing.T) {
		rec := doRequest(t, g, "GET", "/mybucket/key?AWSAccessKeyId="+testAccessKey+"&Signature=x&Expires=1", nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAnonymousAccess(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/pubbucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, g, "PUT", "/pubbucket/open.txt", []byte("open"), true, func(req *http.Request) {
		req.Header.Set("x-amz-acl", "public-read")
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, g, "PUT", "/pubbucket/closed.txt", []byte("closed"), true)
	require.Equal(t, http.StatusOK, rec.Code)

	// Anonymous readers can fetch the public object but not the private one.
	rec = doRequest(t, g, "GET", "/pubbucket/open.txt", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "open", rec.Body.String())

	rec = doRequest(t, g, "GET", "/pubbucket/closed.txt", nil, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>AccessDenied</Code>")

	// Anonymous writes to a private bucket are denied.
	rec = doRequest(t, g, "PUT", "/pubbucket/new.txt", []byte("x"), false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCrossAccountACL(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/shared", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, g, "PUT", "/shared/doc.txt", []byte("doc"), true)
	require.Equal(t, http.StatusOK, rec.Code)

	signOther := func(req *http.Request) { signRequest(req, otherAccessKey, otherSecretKey) }

	// The other account has no grant yet.
	rec = doRequest(t, g, "GET", "/shared/doc.txt", nil, false, signOther)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Grant it FULL_CONTROL on the object. Exact-match evaluation means
	// that grant still does not confer READ.
	aclDoc := `<AccessControlPolicy>` +
		`<Owner><ID>` + testAccountID + `</ID></Owner>` +
		`<AccessControlList>` +
		`<Grant><Grantee xsi:type="CanonicalUser"><ID>` + otherAccountID + `</ID></Grantee><Permission>FULL_CONTROL</Permission></Grant>` +
		`</AccessControlList>` +
		`</AccessControlPolicy>`
	rec = doRequest(t, g, "PUT", "/shared/doc.txt?acl=", []byte(aclDoc), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, g, "GET", "/shared/doc.txt", nil, false, signOther)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A READ grant does.
	aclDoc = `<AccessControlPolicy>` +
		`<Owner><ID>` + testAccountID + `</ID></Owner>` +
		`<AccessControlList>` +
		`<Grant><Grantee xsi:type="CanonicalUser"><ID>` + otherAccountID + `</ID></Grantee><Permission>READ</Permission></Grant>` +
		`</AccessControlList>` +
		`</AccessControlPolicy>`
	rec = doRequest(t, g, "PUT", "/shared/doc.txt?acl=", []byte(aclDoc), true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, g, "GET", "/shared/doc.txt", nil, false, signOther)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The owner keeps access regardless of the grant list.
	rec = doRequest(t, g, "GET", "/shared/doc.txt", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetAndPutACLDocuments(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/aclbucket", nil, true, func(req *http.Request) {
		req.Header.Set("x-amz-acl", "public-read")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, g, "GET", "/aclbucket?acl=", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<AccessControlPolicy>")
	assert.Contains(t, body, "<Permission>FULL_CONTROL</Permission>")
	assert.Contains(t, body, "<Permission>READ</Permission>")
	assert.Contains(t, body, "http://acs.amazonaws.com/groups/global/AllUsers")

	// Unresolvable grantees are dropped silently; the rest survive.
	aclDoc := `<AccessControlPolicy>` +
		`<Owner><ID>` + testAccountID + `</ID></Owner>` +
		`<AccessControlList>` +
		`<Grant><Grantee xsi:type="CanonicalUser"><ID>ghost</ID></Grantee><Permission>READ</Permission></Grant>` +
		`<Grant><Grantee xsi:type="AmazonCustomerByEmail"><EmailAddress>other@example.com</EmailAddress></Grantee><Permission>READ</Permission></Grant>` +
		`</AccessControlList>` +
		`</AccessControlPolicy>`
	rec = doRequest(t, g, "PUT", "/aclbucket?acl=", []byte(aclDoc), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, g, "GET", "/aclbucket?acl=", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.NotContains(t, body, "ghost")
	assert.Contains(t, body, "<ID>"+otherAccountID+"</ID>")

	// An ACL document with an unresolvable owner is rejected.
	aclDoc = `<AccessControlPolicy><Owner><ID>ghost</ID></Owner><AccessControlList></AccessControlList></AccessControlPolicy>`
	rec = doRequest(t, g, "PUT", "/aclbucket?acl=", []byte(aclDoc), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed XML is rejected.
	rec = doRequest(t, g, "PUT", "/aclbucket?acl=", []byte("<AccessControlPolicy>"), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>MalformedACLError</Code>")
}

func TestContentMD5Validation(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/md5bucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	body := []byte("payload")
	sum := md5.Sum(body)
	goodMD5 := hex.EncodeToString(sum[:])

	rec = doRequest(t, g, "PUT", "/md5bucket/ok", body, true, func(req *http.Request) {
		req.Header.Set("Content-MD5", goodMD5)
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Wrong shape rejects before the digest is even compared.
	rec = doRequest(t, g, "PUT", "/md5bucket/short", body, true, func(req *http.Request) {
		req.Header.Set("Content-MD5", "abc123")
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>InvalidDigest</Code>")

	// Right shape, wrong digest.
	wrongMD5 := hex.EncodeToString(bytes.Repeat([]byte{0xab}, md5.Size))
	rec = doRequest(t, g, "PUT", "/md5bucket/bad", body, true, func(req *http.Request) {
		req.Header.Set("Content-MD5", wrongMD5)
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>BadDigest</Code>")
}

func TestCopyObject(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/srcbucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, g, "PUT", "/dstbucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, g, "PUT", "/srcbucket/orig.txt", []byte("original"), true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, g, "PUT", "/dstbucket/copy.txt", nil, true, func(req *http.Request) {
		req.Header.Set("x-amz-copy-source", "/srcbucket/orig.txt")
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "<CopyObjectResult>")
	assert.Contains(t, rec.Body.String(), "<ETag>")

	rec = doRequest(t, g, "GET", "/dstbucket/copy.txt", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "original", rec.Body.String())

	// A missing source surfaces as NoSuchKey.
	rec = doRequest(t, g, "PUT", "/dstbucket/copy2.txt", nil, true, func(req *http.Request) {
		req.Header.Set("x-amz-copy-source", "/srcbucket/absent.txt")
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A garbage copy source is an invalid argument.
	rec = doRequest(t, g, "PUT", "/dstbucket/copy3.txt", nil, true, func(req *http.Request) {
		req.Header.Set("x-amz-copy-source", "no-slash")
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeadObject(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/headbucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, g, "PUT", "/headbucket/doc", []byte("12345"), true, func(req *http.Request) {
		req.Header.Set("Content-Type", "application/json")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, g, "HEAD", "/headbucket/doc", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Body.String())

	// Status only, no XML body, on a missing key.
	rec = doRequest(t, g, "HEAD", "/headbucket/absent", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestListObjectsResponse(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/listbucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, key := range []string{"a.txt", "photos/jan.jpg", "photos/feb.jpg"} {
		rec = doRequest(t, g, "PUT", "/listbucket/"+key, []byte("x"), true)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = doRequest(t, g, "GET", "/listbucket?delimiter=/", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<ListBucketResult>")
	assert.Contains(t, body, "<Key>a.txt</Key>")
	assert.Contains(t, body, "<CommonPrefixes>")
	assert.Contains(t, body, "<Prefix>photos/</Prefix>")
	assert.NotContains(t, body, "<Key>photos/jan.jpg</Key>")

	// Unsupplied parameters are omitted, not echoed empty.
	assert.NotContains(t, body, "<Prefix></Prefix>")
	assert.NotContains(t, body, "<Marker></Marker>")
	assert.NotContains(t, body, "<MaxKeys>")

	rec = doRequest(t, g, "GET", "/listbucket?prefix=photos/&marker=photos/feb.jpg&max-keys=10", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "<Prefix>photos/</Prefix>")
	assert.Contains(t, body, "<Marker>photos/feb.jpg</Marker>")
	assert.Contains(t, body, "<MaxKeys>10</MaxKeys>")
	assert.NotContains(t, body, "<Delimiter>")

	rec = doRequest(t, g, "GET", "/listbucket?max-keys=notanumber", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, g, "GET", "/nosuchbucket", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>NoSuchBucket</Code>")
}

func TestGetBucketLocation(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/locbucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, g, "GET", "/locbucket?location=", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<LocationConstraint></LocationConstraint>")
}

func TestVirtualHostedAddressing(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "PUT", "/vhbucket", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, g, "PUT", "/vhbucket/nested/key.txt", []byte("vh"), true)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same object via the bucket subdomain. The canonical resource is
	// /bucket-prefixed, so the signature covers the host-derived bucket.
	req := httptest.NewRequest("GET", "http://vhbucket.s3.example.com/nested/key.txt", nil)
	date := "Tue, 27 Mar 2007 19:36:42 +0000"
	req.Header.Set("Date", date)
	stringToSign := "GET\n\n\n" + date + "\n/vhbucket/nested/key.txt"
	h := hmac.New(sha1.New, []byte(testSecretKey))
	h.Write([]byte(stringToSign))
	req.Header.Set("Authorization", "AWS "+testAccessKey+":"+base64.StdEncoding.EncodeToString(h.Sum(nil)))

	rec2 := httptest.NewRecorder()
	g.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())
	assert.Equal(t, "vh", rec2.Body.String())
}

func TestUnroutedRequest(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "POST", "/bucket/key", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>InvalidArgument</Code>")
}

func TestErrorResponseShape(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)

	rec := doRequest(t, g, "GET", "/nosuchbucket/key", nil, true)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<Error>"), body)
	assert.Contains(t, body, "<Code>NoSuchKey</Code>")
	assert.Contains(t, body, "<Resource>/nosuchbucket/key</Resource>")
	assert.Contains(t, body, "<RequestId>")
	assert.NotEmpty(t, rec.Header().Get("x-amz-request-id"))
}
