package filter

import (
	"net/http"
	"strings"

	"github.com/petra-storage/petra/pkg/s3api/args"
	"github.com/petra-storage/petra/pkg/s3api/s3action"
	"github.com/petra-storage/petra/pkg/s3api/s3consts"
)

// Resolved is the outcome of resource resolution: the addressed bucket and
// key plus the canonical path components used for signing.
type Resolved struct {
	Bucket string
	Key    string

	// HostBucket is non-empty when the bucket came from the Host header
	// (virtual-hosted style). The canonical resource is then prefixed
	// with /HostBucket.
	HostBucket string

	// CanonicalPath is the request path with the query string stripped.
	CanonicalPath string

	Args args.Args
}

// Resolve derives bucket/object identity from the Host header, the request
// path, and the query string.
//
// Virtual-hosted detection searches the host for the literal "s3."
// substring: for "bucket.s3.example.com" the bucket is everything before
// the enclosing dot. When the path itself begins with '?' (a virtual-hosted
// GET with no path), the path is the query string. When the host supplied
// the bucket, the entire remaining path is the key, slashes included.
func Resolve(host, path, query string) Resolved {
	var r Resolved

	host, _, _ = strings.Cut(host, ":")
	if p := strings.Index(host, "s3."); p > 0 {
		r.Bucket = strings.TrimSuffix(host[:p], ".")
		r.HostBucket = r.Bucket
	}

	if strings.HasPrefix(path, "?") {
		r.Args = args.Parse(path)
		r.CanonicalPath = ""
		return r
	}
	r.Args = args.Parse(query)

	r.CanonicalPath, _, _ = strings.Cut(path, "?")

	if !strings.HasPrefix(r.CanonicalPath, "/") {
		return r
	}

	rest := strings.TrimPrefix(r.CanonicalPath, "/")
	if rest == "" {
		return r
	}

	if r.HostBucket != "" {
		// Host already named the bucket: the whole path is the key.
		r.Key = rest
		return r
	}

	bucket, key, _ := strings.Cut(rest, "/")
	r.Bucket = bucket
	r.Key = key
	return r
}

// route maps a request shape to an action. Conditions all have to hold.
type route struct {
	action s3action.Action
	conds  []condition
}

type condition func(req *http.Request, q args.Args) bool

func queryExists(name string) condition {
	return func(_ *http.Request, q args.Args) bool { return q.Exists(name) }
}

func headerExists(name string) condition {
	name = http.CanonicalHeaderKey(name)
	return func(req *http.Request, _ args.Args) bool {
		_, ok := req.Header[name]
		return ok
	}
}

func (r route) matches(req *http.Request, q args.Args) bool {
	for _, cond := range r.conds {
		if !cond(req, q) {
			return false
		}
	}
	return true
}

type routes []route

func (rts routes) match(req *http.Request, q args.Args) (s3action.Action, bool) {
	for _, rt := range rts {
		if rt.matches(req, q) {
			return rt.action, true
		}
	}
	return s3action.Unknown, false
}

// methodRouter holds the route tables for one resource shape. Route order
// matters: more specific routes (sub-resources, copy-source) come first.
type methodRouter struct {
	get    routes
	head   routes
	put    routes
	delete routes
}

func (r methodRouter) match(req *http.Request, q args.Args) (s3action.Action, bool) {
	var rts routes
	switch req.Method {
	case http.MethodGet:
		rts = r.get
	case http.MethodHead:
		rts = r.head
	case http.MethodPut:
		rts = r.put
	case http.MethodDelete:
		rts = r.delete
	}
	return rts.match(req, q)
}

// Router maps (method, resource shape, sub-resource) to an action.
type Router struct {
	service methodRouter // neither bucket nor key
	bucket  methodRouter // bucket only
	key     methodRouter // bucket and key
}

func NewRouter() *Router {
	return &Router{
		service: methodRouter{
			get: routes{{action: s3action.ListBuckets}},
		},
		bucket: methodRouter{
			get: routes{
				{action: s3action.GetBucketAcl, conds: []condition{queryExists(s3consts.SubResourceACL)}},
				{action: s3action.GetBucketLocation, conds: []condition{queryExists(s3consts.SubResourceLocation)}},
				{action: s3action.ListObjects},
			},
			put: routes{
				{action: s3action.PutBucketAcl, conds: []condition{queryExists(s3consts.SubResourceACL)}},
				{action: s3action.CreateBucket},
			},
			delete: routes{
				{action: s3action.DeleteBucket},
			},
		},
		key: methodRouter{
			get: routes{
				{action: s3action.GetObjectAcl, conds: []condition{queryExists(s3consts.SubResourceACL)}},
				{action: s3action.GetObject},
			},
			head: routes{
				{action: s3action.HeadObject},
			},
			put: routes{
				{action: s3action.PutObjectAcl, conds: []condition{queryExists(s3consts.SubResourceACL)}},
				{action: s3action.CopyObject, conds: []condition{headerExists(s3consts.XAmzCopySource)}},
				{action: s3action.PutObject},
			},
			delete: routes{
				{action: s3action.DeleteObject},
			},
		},
	}
}

// Match returns the action for a resolved request, or false when no route
// matches (the caller responds InvalidArgument).
func (r *Router) Match(req *http.Request, res Resolved) (s3action.Action, bool) {
	switch {
	case res.Key != "":
		return r.key.match(req, res.Args)
	case res.Bucket != "":
		return r.bucket.match(req, res.Args)
	default:
		return r.service.match(req, res.Args)
	}
}
