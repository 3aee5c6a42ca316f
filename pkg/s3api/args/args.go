// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

// Package args parses S3 query strings. Unlike net/url it preserves the
// gateway's forgiving semantics: malformed segments are skipped rather than
// fatal, and values keep any '=' characters after the first one.
package args

import (
	"strings"

	"github.com/petra-storage/petra/pkg/s3api/s3consts"
)

// Args is a parsed query string: parameter name to value.
type Args struct {
	vals map[string]string
}

// Parse builds Args from a raw query string. A leading '?' is stripped.
// Segments are separated by '&'; each segment splits at the first '=' with
// everything after it (including further '=' characters) as the value.
// Segments without '=' are skipped. The empty string yields empty Args.
func Parse(raw string) Args {
	a := Args{vals: make(map[string]string)}

	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return a
	}

	for len(raw) > 0 {
		var seg string
		if i := strings.IndexByte(raw, '&'); i >= 0 {
			seg, raw = raw[:i], raw[i+1:]
		} else {
			seg, raw = raw, ""
		}

		name, val, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		a.vals[name] = val
	}

	return a
}

// Get returns the value for name, or the empty string when absent. Callers
// distinguish absent from present-but-empty with Exists.
func (a Args) Get(name string) string {
	return a.vals[name]
}

// Exists reports whether name was present in the query string.
func (a Args) Exists(name string) bool {
	_, ok := a.vals[name]
	return ok
}

// SubResource returns the first recognized sub-resource parameter present,
// or the empty string. Sub-resources select an alternate representation of
// the resource and participate in the canonical resource for signing.
func (a Args) SubResource() string {
	for _, sub := range s3consts.SubResources {
		if a.Exists(sub) {
			return sub
		}
	}
	return ""
}
