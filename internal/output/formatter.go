package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	lhttp "github.com/stackrox/acs-loadtest/internal/http"
)

// Formatter is responsible for formatting HTTP requests and responses in text format
type Formatter struct {
	Verbose bool
	NoColor bool

	scheme *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		scheme:  scheme,
	}
}

// FormatRequest formats an HTTP request for display
func (f *Formatter) FormatRequest(req *lhttp.Request, baseURL string) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("▶ REQUEST: %s %s\n",
		f.scheme.Method.Sprint(req.Method),
		f.scheme.URL.Sprint(fullURL(req, baseURL))))

	headers := flattenHeaders(req.Headers)
	if len(headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, key := range sortedKeys(headers) {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", f.scheme.HeaderKey.Sprint(key), headers[key]))
		}
	}

	return buf.String()
}

// FormatResponse formats an HTTP response for display
func (f *Formatter) FormatResponse(resp *lhttp.Response) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("◀ RESPONSE: %s (%dms)\n",
		f.scheme.Status(resp.StatusCode).Sprint(resp.Status),
		resp.Timing.TotalTime.Milliseconds()))

	if f.Verbose {
		t := timingData(resp.Timing)
		buf.WriteString("  Timing:\n")
		buf.WriteString(fmt.Sprintf("    DNS Lookup:         %dms\n", t.DNSLookup))
		buf.WriteString(fmt.Sprintf("    TCP Connection:     %dms\n", t.TCPConnection))
		buf.WriteString(fmt.Sprintf("    TLS Handshake:      %dms\n", t.TLSHandshake))
		buf.WriteString(fmt.Sprintf("    Time to First Byte: %dms\n", t.TimeToFirstByte))
		buf.WriteString(fmt.Sprintf("    Content Transfer:   %dms\n", t.ContentTransfer))
		buf.WriteString(fmt.Sprintf("    Total:              %dms\n", t.Total))

		headers := flattenHeaders(resp.Headers)
		buf.WriteString("  Headers:\n")
		for _, key := range sortedKeys(headers) {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", f.scheme.HeaderKey.Sprint(key), headers[key]))
		}
	}

	body, err := resp.GetBodyAsString()
	if err == nil && body != "" {
		buf.WriteString("  Body:\n  ")
		buf.WriteString(formatJSONString(body))
		buf.WriteString("\n")
	}

	return buf.String()
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return prettyJSON.String()
}
