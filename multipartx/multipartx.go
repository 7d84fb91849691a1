// Package multipartx extracts a single file part from a multipart/form-data
// body in one pass. It is not a general MIME parser: nested multipart and
// parts without a filename are not supported.
package multipartx

import (
	"bytes"
	"errors"
	"strings"
)

var (
	ErrNotMultipart    = errors.New("content type is not multipart/form-data")
	ErrNoBoundary      = errors.New("multipart boundary not found in content type")
	ErrPartNotFound    = errors.New("file not found in request")
	ErrMissingFilename = errors.New("file part has no filename")
	ErrMalformedPart   = errors.New("malformed file part")
)

const mediaType = "multipart/form-data"

var headerSeparator = []byte("\r\n\r\n")

// Part is an uploaded file
type Part struct {
	Filename string
	Content  []byte
}

type state int

const (
	seekingBoundary state = iota
	inHeaders
	inPayload
)

// Boundary returns the boundary parameter of a multipart/form-data content type
func Boundary(contentType string) (string, error) {
	mt, params, _ := strings.Cut(contentType, ";")
	if !strings.EqualFold(strings.TrimSpace(mt), mediaType) {
		return "", ErrNotMultipart
	}
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(k, "boundary") {
			continue
		}
		v = strings.Trim(strings.TrimSpace(v), `"`)
		if v == "" {
			return "", ErrNoBoundary
		}
		return v, nil
	}
	return "", ErrNoBoundary
}

// ExtractFile returns the first part whose Content-Disposition names field.
// The payload is everything after the blank line that ends the part headers,
// minus the CRLF preceding the next delimiter.
func ExtractFile(contentType string, body []byte, field string) (*Part, error) {
	boundary, err := Boundary(contentType)
	if err != nil {
		return nil, err
	}
	delimiter := []byte("--" + boundary)

	var (
		st       = seekingBoundary
		rest     = body
		segment  []byte
		payload  []byte
		filename string
	)
	for {
		switch st {
		case seekingBoundary:
			i := bytes.Index(rest, delimiter)
			if i < 0 {
				return nil, ErrPartNotFound
			}
			rest = rest[i+len(delimiter):]
			end := bytes.Index(rest, delimiter)
			if end < 0 {
				end = len(rest)
			}
			segment = rest[:end]
			st = inHeaders

		case inHeaders:
			sep := bytes.Index(segment, headerSeparator)
			if sep < 0 {
				// closing delimiter, preamble garbage
				st = seekingBoundary
				continue
			}
			disposition, ok := contentDisposition(string(segment[:sep]))
			if !ok {
				st = seekingBoundary
				continue
			}
			if name, _ := param(disposition, "name"); name != field {
				st = seekingBoundary
				continue
			}
			if filename, ok = param(disposition, "filename"); !ok {
				return nil, ErrMissingFilename
			}
			payload = segment[sep+len(headerSeparator):]
			st = inPayload

		case inPayload:
			if len(payload) < 2 {
				return nil, ErrMalformedPart
			}
			return &Part{
				Filename: filename,
				Content:  payload[:len(payload)-2],
			}, nil
		}
	}
}

func contentDisposition(headers string) (string, bool) {
	for _, line := range strings.Split(headers, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), "Content-Disposition") {
			return v, true
		}
	}
	return "", false
}

// param finds key="value" in a header value. The key must start a parameter,
// so "name" does not match inside "filename".
func param(header, key string) (string, bool) {
	needle := key + `="`
	for from := 0; from < len(header); {
		i := strings.Index(header[from:], needle)
		if i < 0 {
			return "", false
		}
		i += from
		if i == 0 || strings.ContainsRune("; \t", rune(header[i-1])) {
			value := header[i+len(needle):]
			end := strings.IndexByte(value, '"')
			if end < 0 {
				return "", false
			}
			return value[:end], true
		}
		from = i + len(needle)
	}
	return "", false
}
