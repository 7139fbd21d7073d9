package fetch

import (
	"encoding/json"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind represents the declared content kind of a response
type Kind string

const (
	// KindJSON represents a structured JSON document
	KindJSON Kind = "json"
	// KindText represents an opaque textual body
	KindText Kind = "text"
)

// Result represents a decoded response
type Result struct {
	Kind        Kind
	ContentType string
	// JSON holds the document when Kind is KindJSON
	JSON json.RawMessage
	// Text holds the body when Kind is KindText
	Text string
}

// Decode unmarshals a JSON result into v
func (r *Result) Decode(v interface{}) error {
	if r == nil {
		return &DecodeError{Err: errors.New("empty result")}
	}
	if r.Kind != KindJSON {
		return &DecodeError{ContentType: r.ContentType, Err: errors.Errorf("expected JSON but got %s", r.Kind)}
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return &DecodeError{ContentType: r.ContentType, Err: err}
	}
	return nil
}

// classify returns the content kind for a Content-Type header value
func classify(contentType string) Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindText
	}
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		return KindJSON
	}
	return KindText
}

// decode builds a Result from a raw body according to the declared content type
func decode(contentType string, body []byte) (*Result, error) {
	kind := classify(contentType)
	switch kind {
	case KindJSON:
		if !json.Valid(body) {
			return nil, &DecodeError{ContentType: contentType, Err: errors.New("invalid JSON document")}
		}
		return &Result{
			Kind:        KindJSON,
			ContentType: contentType,
			JSON:        json.RawMessage(body),
		}, nil
	default:
		if !utf8.Valid(body) {
			return nil, &DecodeError{ContentType: contentType, Err: errors.New("body is not valid UTF-8")}
		}
		return &Result{
			Kind:        KindText,
			ContentType: contentType,
			Text:        string(body),
		}, nil
	}
}
