package fetch

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

var (
	// ErrNoBaseURL represents an executor created without base URL
	ErrNoBaseURL = errors.New("no base URL provided")
)

// NewHTTPClient returns an http client whose transport negotiates HTTP/2 over TLS
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	err := http2.ConfigureTransport(t)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure http2 transport")
	}

	return &http.Client{
		Transport: t,
		Timeout:   timeout,
	}, nil
}

// NewExecutor returns a new Executor instance
// baseURL is the location all request paths are resolved against
// a nil client uses http.DefaultClient
func NewExecutor(baseURL string, client *http.Client) (*Executor, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse base URL")
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Executor{
		base: u,
		http: client,
	}, nil
}

// Executor performs the network calls for requests
type Executor struct {
	base *url.URL
	http *http.Client
}

// URL returns the absolute URL of a request.
// The path and query are taken from Request.URI so URLs and cache keys agree.
func (e *Executor) URL(req Request) string {
	base := strings.TrimSuffix(e.base.String(), "/")
	uri := req.URI()
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return base + uri
}

// Execute performs req and decodes the response.
// Failures are returned as *NetworkError, *RequestError or *DecodeError.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	target := e.URL(req)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	r, err := http.NewRequestWithContext(ctx, req.method(), target, body)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: err}
	}
	if req.ContentType != "" {
		r.Header.Set("Content-Type", req.ContentType)
	}
	r.Header.Set("Accept", "application/json, text/plain, */*")

	log.Debugf("%s %s", r.Method, target)
	resp, err := e.http.Do(r)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: errors.Wrap(err, "failed to read response body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(data),
		}
	}

	return decode(resp.Header.Get("Content-Type"), data)
}
