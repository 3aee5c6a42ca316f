package filter

import (
	"sync/atomic"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/iam"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
	"github.com/petra-storage/petra/pkg/s3api/signature"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	FilterTypeAuthentication = "AuthenticationFilter"

	// Metric label values for auth results
	authResultSuccess           = "success"
	authResultAnonymous         = "anonymous"
	authResultInvalidAccessKey  = "invalid_access_key"
	authResultSignatureMismatch = "signature_mismatch"
	authResultExpired           = "expired"
	authResultMalformed         = "malformed"
)

// AuthenticationFilter verifies the request signature and resolves the
// caller's identity. Requests without credentials resolve to the anonymous
// identity; whether they may proceed is decided by ACL evaluation.
type AuthenticationFilter struct {
	verifier *signature.V2Verifier

	authAttempts atomic.Uint64
	authErrors   atomic.Uint64

	metricAuthTotal *prometheus.CounterVec
}

func NewAuthenticationFilter(iamManager *iam.Manager) *AuthenticationFilter {
	return &AuthenticationFilter{
		verifier: signature.NewV2Verifier(iamManager),
		metricAuthTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_filter_total",
			Help: "Total authentication attempts by result",
		}, []string{"result"}),
	}
}

// Collectors returns the Prometheus collectors for registration
func (f *AuthenticationFilter) Collectors() []prometheus.Collector {
	return []prometheus.Collector{f.metricAuthTotal}
}

// Stats returns current auth statistics
func (f *AuthenticationFilter) Stats() (attempts, errors uint64) {
	return f.authAttempts.Load(), f.authErrors.Load()
}

func (f *AuthenticationFilter) recordResult(result string) {
	f.authAttempts.Add(1)
	if result != authResultSuccess && result != authResultAnonymous {
		f.authErrors.Add(1)
	}
	f.metricAuthTotal.WithLabelValues(result).Inc()
}

func errorToResult(errCode s3err.ErrorCode) string {
	switch errCode {
	case s3err.ErrInvalidAccessKeyID:
		return authResultInvalidAccessKey
	case s3err.ErrSignatureDoesNotMatch:
		return authResultSignatureMismatch
	case s3err.ErrExpiredPresignRequest:
		return authResultExpired
	default:
		return authResultMalformed
	}
}

func (f *AuthenticationFilter) Type() string {
	return FilterTypeAuthentication
}

func (f *AuthenticationFilter) Run(d *data.Data) (Response, error) {
	if d.Ctx.Err() != nil {
		return nil, d.Ctx.Err()
	}

	info := signature.RequestInfo{
		Method:      d.Req.Method,
		ContentMD5:  d.Req.Header.Get("Content-MD5"),
		ContentType: d.Req.Header.Get("Content-Type"),
		Date:        d.Req.Header.Get("Date"),
		AmzHeaders:  d.AmzHeaders,
		CanonicalResource: signature.CanonicalResource(
			d.S3Info.HostBucket, d.S3Info.CanonicalPath, d.Args.SubResource()),
	}

	identity, errCode := f.verifier.VerifyRequest(d.Ctx, d.Req.Header.Get("Authorization"), d.Args, info)
	if errCode != s3err.ErrNone {
		f.recordResult(errorToResult(errCode))
		return nil, errCode
	}

	d.Identity = identity
	if identity.IsAnonymous() {
		f.recordResult(authResultAnonymous)
	} else {
		f.recordResult(authResultSuccess)
		d.S3Info.OwnerID = identity.AccountID()
	}

	return Next{}, nil
}
