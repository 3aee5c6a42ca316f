// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the gateway's handler layer: one handler per S3 action,
// dispatched after the filter chain has resolved, authenticated, and
// authorized the request.
package api

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/gateway/filter"
	"github.com/petra-storage/petra/pkg/iam"
	"github.com/petra-storage/petra/pkg/logger"
	"github.com/petra-storage/petra/pkg/s3api/s3action"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
	"github.com/petra-storage/petra/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
)

type Handler func(*data.Data, http.ResponseWriter)

// Gateway serves the S3 REST surface. Each request runs the filter chain
// to completion, then dispatches to the action's handler. Requests are
// independent: the only shared state lives in the backend collaborators.
type Gateway struct {
	backend store.Backend
	iam     *iam.Manager
	chain   *filter.Chain

	handlers map[s3action.Action]Handler

	metricsRequest         *prometheus.CounterVec
	metricsRequestDuration *prometheus.HistogramVec
}

func NewGateway(backend store.Backend, iamManager *iam.Manager, chain *filter.Chain) *Gateway {
	g := &Gateway{
		backend: backend,
		iam:     iamManager,
		chain:   chain,
		metricsRequest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Requests served by action and status code",
		}, []string{"action", "code"}),
		metricsRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request duration by action and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "code"}),
	}

	g.handlers = map[s3action.Action]Handler{
		s3action.ListBuckets:       g.ListBucketsHandler,
		s3action.CreateBucket:      g.CreateBucketHandler,
		s3action.DeleteBucket:      g.DeleteBucketHandler,
		s3action.ListObjects:       g.ListObjectsHandler,
		s3action.GetBucketLocation: g.GetBucketLocationHandler,
		s3action.GetBucketAcl:      g.GetBucketAclHandler,
		s3action.PutBucketAcl:      g.PutBucketAclHandler,
		s3action.GetObject:         g.GetObjectHandler,
		s3action.HeadObject:        g.HeadObjectHandler,
		s3action.PutObject:         g.PutObjectHandler,
		s3action.CopyObject:        g.CopyObjectHandler,
		s3action.DeleteObject:      g.DeleteObjectHandler,
		s3action.GetObjectAcl:      g.GetObjectAclHandler,
		s3action.PutObjectAcl:      g.PutObjectAclHandler,
	}

	return g
}

// Collectors returns the gateway's Prometheus collectors for registration.
func (g *Gateway) Collectors() []prometheus.Collector {
	return []prometheus.Collector{g.metricsRequest, g.metricsRequestDuration}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	wrappedWriter := &wrappedResponseRecorder{
		ResponseWriter: w,
		statusCode:     0,
	}

	// A panic mid-request leaves the response stream in an unknown state.
	// Log the trace and terminate rather than resume.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Fatal().
				Str("stack", string(debug.Stack())).
				Str("path", r.URL.Path).
				Msgf("panic while serving request: %v", rec)
		}
	}()

	d := data.NewData(r.Context(), r)

	defer func() {
		// A client that went away mid-request is not a server error.
		if wrappedWriter.statusCode == http.StatusInternalServerError && errors.Is(r.Context().Err(), context.Canceled) {
			wrappedWriter.statusCode = 0
		}
		code := strconv.Itoa(wrappedWriter.statusCode)
		g.metricsRequest.WithLabelValues(d.S3Info.Action.String(), code).Inc()
		g.metricsRequestDuration.WithLabelValues(d.S3Info.Action.String(), code).Observe(time.Since(start).Seconds())
	}()

	if _, err := g.chain.Run(d); err != nil {
		var errCode s3err.ErrorCode
		if errors.As(err, &errCode) {
			writeErrorResponse(wrappedWriter, d, errCode)
		} else {
			writeErrorResponse(wrappedWriter, d, s3err.ErrInternalError)
		}
		return
	}

	handler, exists := g.handlers[d.S3Info.Action]
	if !exists {
		writeErrorResponse(wrappedWriter, d, s3err.ErrNotImplemented)
		return
	}

	handler(d, wrappedWriter)
}

// storeErrorCode maps backend sentinel errors onto S3 error codes. A handler
// always attaches a code; unexpected backend failures degrade to an
// InternalError body, never a bare 500.
func storeErrorCode(err error) s3err.ErrorCode {
	switch {
	case errors.Is(err, store.ErrBucketNotFound):
		return s3err.ErrNoSuchBucket
	case errors.Is(err, store.ErrObjectNotFound):
		return s3err.ErrNoSuchKey
	case errors.Is(err, store.ErrBucketExists):
		return s3err.ErrBucketAlreadyExists
	case errors.Is(err, store.ErrBucketNotEmpty):
		return s3err.ErrBucketNotEmpty
	default:
		return s3err.ErrInternalError
	}
}
