// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

// Package xmlwriter emits indentation-tracked XML responses. The gateway
// streams response bodies section by section instead of marshalling a
// document tree, so the writer keeps the nesting depth and a once-only
// guard for the XML declaration.
package xmlwriter

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// MaxValueSize bounds a single leaf element's formatted payload. Oversized
// values are dropped rather than truncated mid-element.
const MaxValueSize = 8192

// Writer emits indented XML elements to an underlying stream.
type Writer struct {
	w       io.Writer
	indent  int
	started bool
}

// New returns a Writer emitting to w.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

// StartDocument writes the XML declaration. Emitted at most once per
// response regardless of how many times it is called.
func (x *Writer) StartDocument() {
	if x.started {
		return
	}
	x.started = true
	fmt.Fprintf(x.w, "%*s<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n", x.indent, "")
}

// OpenSection writes an opening tag and increases the nesting depth.
func (x *Writer) OpenSection(name string) {
	fmt.Fprintf(x.w, "%*s<%s>\n", x.indent, "", name)
	x.indent++
}

// OpenSectionAttrs writes an opening tag carrying pre-escaped attribute
// text and increases the nesting depth.
func (x *Writer) OpenSectionAttrs(name, attrs string) {
	fmt.Fprintf(x.w, "%*s<%s %s>\n", x.indent, "", name, attrs)
	x.indent++
}

// CloseSection decreases the nesting depth and writes the closing tag.
func (x *Writer) CloseSection(name string) {
	x.indent--
	fmt.Fprintf(x.w, "%*s</%s>\n", x.indent, "", name)
}

// Value writes a leaf element. Values longer than MaxValueSize are dropped.
func (x *Writer) Value(name, value string) {
	if len(value) >= MaxValueSize {
		return
	}
	fmt.Fprintf(x.w, "%*s<%s>%s</%s>\n", x.indent, "", name, escape(value), name)
}

// Valuef formats and writes a leaf element with the same size bound.
func (x *Writer) Valuef(name, format string, args ...any) {
	x.Value(name, fmt.Sprintf(format, args...))
}

// Time writes a timestamp element in the S3 wire format.
func (x *Writer) Time(name string, t time.Time) {
	x.Value(name, t.UTC().Format("2006-01-02T15:04:05.000Z"))
}

func escape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return ""
	}
	return b.String()
}
