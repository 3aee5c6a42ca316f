package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/petra-storage/petra/pkg/iam"
	"github.com/petra-storage/petra/pkg/s3api/args"
	"github.com/petra-storage/petra/pkg/s3api/s3consts"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
)

// AWS Signature Version 2 implementation following:
// https://docs.aws.amazon.com/AmazonS3/latest/userguide/RESTAuthentication.html

// AuthHeaderV2 is the Authorization scheme prefix for header-based auth.
const AuthHeaderV2 = "AWS"

// V2Verifier verifies AWS Signature Version 2 authentication
type V2Verifier struct {
	iamManager *iam.Manager
	now        func() time.Time
}

// NewV2Verifier creates a new signature v2 verifier
func NewV2Verifier(iamManager *iam.Manager) *V2Verifier {
	return &V2Verifier{
		iamManager: iamManager,
		now:        time.Now,
	}
}

// v2AuthInfo contains parsed v2 authentication information from request
type v2AuthInfo struct {
	accessKey   string
	signature   string
	isPresigned bool
	expires     string
}

// VerifyRequest authenticates the caller. Requests with no credentials at
// all resolve to the fixed anonymous identity and trivially succeed;
// authorization for them is deferred entirely to ACL evaluation.
func (v *V2Verifier) VerifyRequest(ctx context.Context, authHeader string, q args.Args, info RequestInfo) (*iam.Identity, s3err.ErrorCode) {
	if authHeader == "" && !q.Exists(s3consts.QueryAccessKeyID) {
		return v.iamManager.Anonymous(), s3err.ErrNone
	}

	auth, err := extractV2AuthInfo(authHeader, q)
	if err != nil {
		return nil, s3err.ErrAuthorizationHeaderMalformed
	}

	if auth.isPresigned {
		expiresTime, err := strconv.ParseInt(auth.expires, 10, 64)
		if err != nil {
			return nil, s3err.ErrAuthorizationHeaderMalformed
		}
		if v.now().Unix() >= expiresTime {
			return nil, s3err.ErrExpiredPresignRequest
		}
		// Expires replaces the Date header in the string to sign.
		info.Date = auth.expires
	}

	identity, credential, found := v.iamManager.LookupByAccessKey(ctx, auth.accessKey)
	if !found {
		return nil, s3err.ErrInvalidAccessKeyID
	}

	stringToSign := BuildStringToSign(info)
	expectedSig := calculateSignature(credential.SecretKey, stringToSign)

	if !constantTimeCompare(auth.signature, expectedSig) {
		return nil, s3err.ErrSignatureDoesNotMatch
	}

	return identity, s3err.ErrNone
}

// extractV2AuthInfo parses authentication info from the Authorization
// header or the query string. Query-string auth requires AWSAccessKeyId,
// Signature (URL-encoded) and Expires.
func extractV2AuthInfo(authHeader string, q args.Args) (*v2AuthInfo, error) {
	if q.Exists(s3consts.QueryAccessKeyID) {
		sig, err := url.QueryUnescape(q.Get(s3consts.QuerySignature))
		if err != nil {
			return nil, fmt.Errorf("invalid signature encoding: %w", err)
		}
		if sig == "" || !q.Exists(s3consts.QueryExpires) {
			return nil, fmt.Errorf("incomplete query-string credentials")
		}
		return &v2AuthInfo{
			accessKey:   q.Get(s3consts.QueryAccessKeyID),
			signature:   sig,
			isPresigned: true,
			expires:     q.Get(s3consts.QueryExpires),
		}, nil
	}

	// Authorization: "AWS AccessKeyId:Signature", scheme is case-sensitive.
	if !strings.HasPrefix(authHeader, AuthHeaderV2+" ") {
		return nil, fmt.Errorf("invalid authorization header")
	}

	authValue := strings.TrimPrefix(authHeader, AuthHeaderV2+" ")
	accessKey, sig, ok := strings.Cut(authValue, ":")
	if !ok || accessKey == "" {
		return nil, fmt.Errorf("invalid authorization format")
	}

	return &v2AuthInfo{
		accessKey: accessKey,
		signature: sig,
	}, nil
}

// calculateSignature computes the base64 HMAC-SHA1 signature for V2
func calculateSignature(secretKey, stringToSign string) string {
	h := hmac.New(sha1.New, []byte(secretKey))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// constantTimeCompare performs constant-time string comparison to prevent timing attacks
func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
