package filter

import (
	"errors"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/logger"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
	"github.com/petra-storage/petra/pkg/s3api/s3types"
	"github.com/petra-storage/petra/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
)

const FilterTypeAuthorization = "AuthorizationFilter"

// AuthorizationFilter evaluates the stored access control policy of the
// target resource against the permission the routed action requires.
//
// Object reads consult the object's own policy first and fall back to the
// bucket policy when the object carries none. Mutations inside a bucket
// answer to the bucket policy alone: an object grant never authorizes
// writing into someone else's bucket. A resource with no stored policy is
// left for the handler to judge, typically because the resource does not
// exist yet and the handler owns that error.
type AuthorizationFilter struct {
	backend store.Backend

	metricDecisions *prometheus.CounterVec
}

func NewAuthorizationFilter(backend store.Backend) *AuthorizationFilter {
	return &AuthorizationFilter{
		backend: backend,
		metricDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authz_filter_decisions_total",
			Help: "Authorization decisions by outcome",
		}, []string{"outcome"}),
	}
}

func (f *AuthorizationFilter) Collectors() []prometheus.Collector {
	return []prometheus.Collector{f.metricDecisions}
}

func (f *AuthorizationFilter) Type() string {
	return FilterTypeAuthorization
}

func (f *AuthorizationFilter) Run(d *data.Data) (Response, error) {
	if d.Ctx.Err() != nil {
		return nil, d.Ctx.Err()
	}

	required, ok := d.S3Info.Action.RequiredPermission()
	if !ok {
		// Account-level actions have no resource policy to consult.
		f.metricDecisions.WithLabelValues("skipped").Inc()
		return Next{}, nil
	}

	acl, errCode := f.loadACL(d, required)
	if errCode != s3err.ErrNone {
		f.metricDecisions.WithLabelValues("error").Inc()
		return nil, errCode
	}
	if acl == nil {
		f.metricDecisions.WithLabelValues("no_policy").Inc()
		return Next{}, nil
	}

	d.ACL = acl

	accountID := ""
	isAuthenticated := false
	if d.Identity != nil && !d.Identity.IsAnonymous() {
		accountID = d.Identity.AccountID()
		isAuthenticated = true
	}

	if !acl.Evaluate(accountID, isAuthenticated, required) {
		logger.Debug().
			Str("bucket", d.S3Info.Bucket).
			Str("key", d.S3Info.Key).
			Str("account", accountID).
			Str("permission", string(required)).
			Msg("access denied")
		f.metricDecisions.WithLabelValues("denied").Inc()
		return nil, s3err.ErrAccessDenied
	}

	f.metricDecisions.WithLabelValues("allowed").Inc()
	return Next{}, nil
}

// loadACL picks the policy governing this request. A nil ACL with ErrNone
// means no policy was found and the decision is deferred to the handler.
func (f *AuthorizationFilter) loadACL(d *data.Data, required s3types.Permission) (*s3types.AccessControlList, s3err.ErrorCode) {
	bucket, key := d.S3Info.Bucket, d.S3Info.Key

	// Bucket-level actions and in-bucket mutations are governed by the
	// bucket policy.
	if key == "" || required == s3types.PermissionWrite {
		return f.readACL(d, bucket, "")
	}

	acl, errCode := f.readACL(d, bucket, key)
	if errCode != s3err.ErrNone {
		return nil, errCode
	}
	if acl != nil {
		return acl, s3err.ErrNone
	}
	return f.readACL(d, bucket, "")
}

func (f *AuthorizationFilter) readACL(d *data.Data, bucket, key string) (*s3types.AccessControlList, s3err.ErrorCode) {
	raw, err := f.backend.GetAttr(d.Ctx, bucket, key, store.AttrACL)
	if err != nil {
		if errors.Is(err, store.ErrAttrNotFound) ||
			errors.Is(err, store.ErrBucketNotFound) ||
			errors.Is(err, store.ErrObjectNotFound) {
			return nil, s3err.ErrNone
		}
		logger.Error().Err(err).
			Str("bucket", bucket).
			Str("key", key).
			Msg("failed to read access control policy")
		return nil, s3err.ErrInternalError
	}

	acl, err := s3types.DecodeACL(raw)
	if err != nil {
		logger.Error().Err(err).
			Str("bucket", bucket).
			Str("key", key).
			Msg("corrupt access control policy")
		return nil, s3err.ErrInternalError
	}
	return acl, s3err.ErrNone
}
