package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nogcio/wrkr-go/httpclient"
	"github.com/nogcio/wrkr-go/vu"
)

// buildHTTPBody returns a vu.Body that replays reqs in order every
// iteration, recording one transport-metrics sample and (when ExpectStatus
// is set) one check per request. It is the declarative stand-in for the
// opaque external script runtime a caller could otherwise supply.
func buildHTTPBody(client *httpclient.Client, reqs []requestSpec) vu.Body {
	return func(ctx context.Context, v *vu.Context) error {
		for _, r := range reqs {
			headers := make(http.Header, len(r.Headers))
			for k, val := range r.Headers {
				headers.Set(k, val)
			}

			timeout := time.Duration(r.TimeoutMs) * time.Millisecond
			start := time.Now()
			resp, err := client.Do(ctx, httpclient.Request{
				Method:  r.Method,
				URL:     r.URL,
				Headers: headers,
				Body:    []byte(r.Body),
				Timeout: timeout,
			})
			elapsedMs := float64(time.Since(start).Microseconds()) / 1000

			if err != nil {
				tags := v.RecordRequest("http", 0, 0, elapsedMs, "method", r.Method, "error", "true")
				if r.ExpectStatus != 0 {
					v.CheckFor(tags, checkName(r), false)
				}
				continue
			}

			tags := v.RecordRequest("http", float64(resp.BytesSent), float64(resp.BytesReceived), elapsedMs,
				"method", r.Method, "http_status", strconv.Itoa(resp.Status))

			if r.ExpectStatus != 0 {
				v.CheckFor(tags, checkName(r), resp.Status == r.ExpectStatus)
			}
		}
		return nil
	}
}

func checkName(r requestSpec) string {
	return fmt.Sprintf("status is %d", r.ExpectStatus)
}
