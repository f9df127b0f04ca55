// Package http serves the duka JSON API.
//
// This file implements utilities for reading request bodies. Clients may
// send JSON or form-encoded data; handlers read fields the same way for both.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxBodyBytes bounds request bodies; every write payload is a handful of fields.
const maxBodyBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var mbe *http.MaxBytesError
	if errors.As(p.err, &mbe) {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// lookup walks dotted keys through nested JSON objects. Form keys are
// matched literally, so "newProduct.name" works for both encodings.
func (p *RequestBodyParser) lookup(key string) (any, bool) {
	if p.jsonData != nil {
		var cur any = p.jsonData
		for _, part := range strings.Split(key, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = m[part]; !ok {
				return nil, false
			}
		}
		return cur, true
	}
	if p.formData != nil {
		if _, ok := p.formData[key]; ok {
			return p.formData.Get(key), true
		}
	}
	return nil, false
}

// Has reports whether the field was sent, even if empty.
func (p *RequestBodyParser) Has(key string) bool {
	_, ok := p.lookup(key)
	return ok
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	v, ok := p.lookup(key)
	if !ok {
		return ""
	}
	return sanitizeInput(stringValue(v))
}

// GetInt returns the field as an int. A missing field is 0; a malformed
// one is an error.
func (p *RequestBodyParser) GetInt(key string) (int, error) {
	s := p.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GetBool accepts true/false, 1/0 and the form checkbox value "on".
func (p *RequestBodyParser) GetBool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// Confirmed reports whether the caller acknowledged the warnings of a
// previous attempt. Both "confirmed" and "confirm" are accepted.
func (p *RequestBodyParser) Confirmed() bool {
	return p.GetBool("confirmed") || p.GetBool("confirm")
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims whitespace and drops control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// parseBody parses the request body or writes a 400 and returns nil.
func parseBody(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, CodeBadRequest, err.Error()).Write(w)
			return nil
		}
		BadRequestError("malformed request body").Write(w)
		return nil
	}
	return p
}
