// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/s3api/s3consts"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
	"github.com/petra-storage/petra/pkg/s3api/xmlwriter"
)

type wrappedResponseRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *wrappedResponseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *wrappedResponseRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// setTracingHeaders copies the request id assigned by the pipeline onto the
// response so clients can correlate.
func setTracingHeaders(w http.ResponseWriter, d *data.Data) {
	reqID := d.Req.Header.Get(s3consts.XAmzRequestID)
	if reqID == "" {
		reqID = "NotAvailable"
	}
	w.Header().Set(s3consts.XAmzRequestID, reqID)
	w.Header().Set(s3consts.XAmzId2, reqID)
}

// startXMLResponse writes the success headers and returns a writer for the
// body. The caller emits sections and values on the returned writer.
func startXMLResponse(w http.ResponseWriter, d *data.Data) *xmlwriter.Writer {
	w.Header().Set("Content-Type", "application/xml")
	setTracingHeaders(w, d)
	w.WriteHeader(http.StatusOK)

	x := xmlwriter.New(w)
	x.StartDocument()
	return x
}

// writeEmptyResponse ends a request that succeeded with no body.
func writeEmptyResponse(w http.ResponseWriter, d *data.Data) {
	setTracingHeaders(w, d)
	w.WriteHeader(http.StatusOK)
}

// writeErrorResponse maps the code to its HTTP status and emits the Error
// body. HEAD responses carry the status alone.
func writeErrorResponse(w http.ResponseWriter, d *data.Data, code s3err.ErrorCode) {
	setTracingHeaders(w, d)

	if d.Req.Method == http.MethodHead {
		w.WriteHeader(code.HTTPStatus())
		return
	}

	s3error := code.ToErrorResponse(errorResource(d))
	s3error.RequestID = d.Req.Header.Get(s3consts.XAmzRequestID)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(s3error.HTTPCode)

	x := xmlwriter.New(w)
	x.StartDocument()
	x.OpenSection("Error")
	x.Value("Code", s3error.Code)
	x.Value("Message", s3error.Message)
	if s3error.Resource != "" {
		x.Value("Resource", s3error.Resource)
	}
	if s3error.RequestID != "" {
		x.Value("RequestId", s3error.RequestID)
	}
	x.CloseSection("Error")
}

func errorResource(d *data.Data) string {
	if d.S3Info.Bucket == "" {
		return ""
	}
	res := "/" + d.S3Info.Bucket
	if d.S3Info.Key != "" {
		res += "/" + d.S3Info.Key
	}
	return res
}
