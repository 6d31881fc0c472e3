package httpclient

import (
	"net/http"
	"net/url"
	"strconv"
)

// estimateRequestBytes computes a deterministic HTTP/1.1-framed byte count
// for an outgoing request: request line + headers (including any implicit
// Host/Content-Length the client adds) + CRLF + body. Grounded on the
// reference implementation's byte-accounting module; kept independent of
// the actual wire protocol used (HTTP/2 multiplexes frames differently but
// callers still want a comparable, deterministic figure).
func estimateRequestBytes(method string, u *url.URL, headers http.Header, bodyLen int64) int64 {
	var n int64
	n += requestLineBytes(method, u)

	hasHost := headers.Get("Host") != ""
	hasContentLength := headers.Get("Content-Length") != ""

	for k, vs := range headers {
		for _, v := range vs {
			n += headerBytes(k, v)
		}
	}
	if !hasHost {
		n += headerBytes("Host", hostHeaderValue(u))
	}
	if bodyLen != 0 && !hasContentLength {
		n += headerBytes("Content-Length", strconv.FormatInt(bodyLen, 10))
	}

	n += 2 // end-of-headers CRLF
	n += bodyLen
	return n
}

func requestLineBytes(method string, u *url.URL) int64 {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	// "METHOD SP path SP HTTP/1.1 CRLF"
	return int64(len(method)) + 1 + int64(len(path)) + 1 + int64(len("HTTP/1.1")) + 2
}

func headerBytes(name, value string) int64 {
	// "Name: value CRLF"
	return int64(len(name)) + 2 + int64(len(value)) + 2
}

func hostHeaderValue(u *url.URL) string {
	return u.Host
}

// estimateResponseHeadBytes mirrors estimateRequestBytes for the response
// side: status line + headers + CRLF, excluding the body (counted
// separately from the actual bytes read).
func estimateResponseHeadBytes(proto string, status int, statusText string, headers http.Header) int64 {
	// "HTTP/1.1 SP status SP text CRLF"
	n := int64(len(proto)) + 1 + int64(len(strconv.Itoa(status))) + 1 + int64(len(statusText)) + 2
	for k, vs := range headers {
		for _, v := range vs {
			n += headerBytes(k, v)
		}
	}
	n += 2
	return n
}
