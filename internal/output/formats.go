package output

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	lhttp "github.com/stackrox/acs-loadtest/internal/http"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// SupportedFormats lists the accepted --output values.
func SupportedFormats() []OutputFormat {
	return []OutputFormat{FormatText, FormatJSON, FormatYAML}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	for _, f := range SupportedFormats() {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (supported: text, json, yaml)", s)
}

// FormatProvider is an interface for different output formatters
type FormatProvider interface {
	FormatRequest(req *lhttp.Request, baseURL string) string
	FormatResponse(resp *lhttp.Response) string
}

// RequestData represents the structured data of an HTTP request
type RequestData struct {
	Method    string            `json:"method" yaml:"method"`
	URL       string            `json:"url" yaml:"url"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
}

// TimingData represents detailed timing information for an HTTP request
type TimingData struct {
	DNSLookup       int64 `json:"dnsLookupMs,omitempty" yaml:"dnsLookupMs,omitempty"`
	TCPConnection   int64 `json:"tcpConnectionMs,omitempty" yaml:"tcpConnectionMs,omitempty"`
	TLSHandshake    int64 `json:"tlsHandshakeMs,omitempty" yaml:"tlsHandshakeMs,omitempty"`
	TimeToFirstByte int64 `json:"timeToFirstByteMs,omitempty" yaml:"timeToFirstByteMs,omitempty"`
	ContentTransfer int64 `json:"contentTransferMs,omitempty" yaml:"contentTransferMs,omitempty"`
	Total           int64 `json:"totalMs" yaml:"totalMs"`
}

// ResponseData represents the structured data of an HTTP response
type ResponseData struct {
	StatusCode    int               `json:"statusCode" yaml:"statusCode"`
	Status        string            `json:"status" yaml:"status"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body          interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	Timing        TimingData        `json:"timing" yaml:"timing"`
	Timestamp     string            `json:"timestamp" yaml:"timestamp"`
	ContentLength int64             `json:"contentLength,omitempty" yaml:"contentLength,omitempty"`
}

// RedactAuthorization hides all but the first characters of a bearer
// token. The missing-token marker and empty tokens are shown as they are,
// so a misconfigured run is still visible.
func RedactAuthorization(value string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return value
	}

	token := strings.TrimPrefix(value, prefix)
	if len(token) <= 8 || strings.HasPrefix(token, "<") {
		return value
	}
	return prefix + token[:4] + "…"
}

// flattenHeaders keeps the first value of every header, redacting credentials.
func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		v := values[0]
		if http.CanonicalHeaderKey(key) == "Authorization" {
			v = RedactAuthorization(v)
		}
		out[key] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fullURL(req *lhttp.Request, baseURL string) string {
	u, err := req.URL(baseURL)
	if err != nil {
		return strings.TrimSuffix(baseURL, "/") + req.Path
	}
	return u.String()
}

func requestData(req *lhttp.Request, baseURL string) RequestData {
	return RequestData{
		Method:    req.Method,
		URL:       fullURL(req, baseURL),
		Headers:   flattenHeaders(req.Headers),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func timingData(t lhttp.TimingInfo) TimingData {
	return TimingData{
		DNSLookup:       t.DNSLookupTime.Milliseconds(),
		TCPConnection:   t.TCPConnectTime.Milliseconds(),
		TLSHandshake:    t.TLSHandshakeTime.Milliseconds(),
		TimeToFirstByte: t.TimeToFirstByte.Milliseconds(),
		ContentTransfer: t.ContentTransferTime.Milliseconds(),
		Total:           t.TotalTime.Milliseconds(),
	}
}

func responseData(resp *lhttp.Response) ResponseData {
	// JSON bodies are embedded as values, anything else as a string
	var body interface{}
	if raw, err := resp.GetBody(); err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}

	return ResponseData{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Headers:       flattenHeaders(resp.Headers),
		Body:          body,
		Timing:        timingData(resp.Timing),
		Timestamp:     time.Now().Format(time.RFC3339),
		ContentLength: resp.Size(),
	}
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) marshal(v interface{}) string {
	var (
		output []byte
		err    error
	)
	if f.Pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(output)
}

// FormatRequest formats a request as JSON
func (f *JSONFormatter) FormatRequest(req *lhttp.Request, baseURL string) string {
	return f.marshal(requestData(req, baseURL))
}

// FormatResponse formats a response as JSON
func (f *JSONFormatter) FormatResponse(resp *lhttp.Response) string {
	return f.marshal(responseData(resp))
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) marshal(v interface{}) string {
	output, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %s\n", err)
	}
	return string(output)
}

// FormatRequest formats a request as YAML
func (f *YAMLFormatter) FormatRequest(req *lhttp.Request, baseURL string) string {
	return f.marshal(requestData(req, baseURL))
}

// FormatResponse formats a response as YAML
func (f *YAMLFormatter) FormatResponse(resp *lhttp.Response) string {
	return f.marshal(responseData(resp))
}

// GetFormatter returns the appropriate formatter for the given format
func GetFormatter(format OutputFormat, verbose bool, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return NewFormatter(verbose, noColor)
	}
}
