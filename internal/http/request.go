package http

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request represents an HTTP request
type Request struct {
	Method  string
	Path    string
	Headers http.Header
	Body    io.Reader
}

// NewRequest creates a new HTTP request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(http.Header),
	}
}

// WithHeader sets a header on the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers.Set(key, value)
	return r
}

// WithHeaders copies every value of h onto the request
func (r *Request) WithHeaders(h http.Header) *Request {
	for key, values := range h {
		for _, value := range values {
			r.Headers.Add(key, value)
		}
	}
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body io.Reader) *Request {
	r.Body = body
	return r
}

// URL joins the request path onto baseURL.
func (r *Request) URL(baseURL string) (*url.URL, error) {
	reqURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	if reqURL.Path == "" {
		reqURL.Path = r.Path
	} else {
		reqURL.Path = strings.TrimRight(reqURL.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	}

	return reqURL, nil
}

// Build constructs an http.Request from the Request.
// GET and HEAD requests never carry a body.
func (r *Request) Build(baseURL string) (*http.Request, error) {
	reqURL, err := r.URL(baseURL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	req, err := http.NewRequest(r.Method, reqURL.String(), body)
	if err != nil {
		return nil, err
	}

	for key, values := range r.Headers {
		req.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	return req, nil
}
