package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
)

// Request represents a logical resource request
type Request struct {
	// Method is the HTTP method, GET when empty
	Method string
	// Path is the resource path relative to the executor base URL
	Path string
	// Params represents the URL query params of the request
	Params url.Values
	// Body is sent as request body, only used for non GET requests
	Body []byte
	// ContentType of Body
	ContentType string
}

// Get returns a GET request for path with the provided query params
func Get(path string, params url.Values) Request {
	return Request{
		Method: http.MethodGet,
		Path:   path,
		Params: params,
	}
}

// Post returns a POST request for path with the provided body
func Post(path, contentType string, body []byte) Request {
	return Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		ContentType: contentType,
	}
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// URI returns the normalized path and query of the request.
// Query params are encoded sorted by key, so equal requests produce equal URIs.
func (r Request) URI() string {
	if len(r.Params) == 0 {
		return r.Path
	}
	q := r.Params.Encode()
	if q == "" {
		return r.Path
	}
	return r.Path + "?" + q
}

// Key returns the cache key of the request
func (r Request) Key() string {
	m := r.method()
	if m == http.MethodGet {
		return r.URI()
	}

	key := m + " " + r.URI()
	if len(r.Body) > 0 {
		sum := sha256.Sum256(r.Body)
		key += "#" + hex.EncodeToString(sum[:])[:16]
	}
	return key
}
