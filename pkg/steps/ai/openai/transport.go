package openai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"
)

var doneMarker = []byte("data: [DONE]")

// transport decorates the provider HTTP client. It sets the configured user
// agent and, for streaming requests carrying a doneTracker in their context,
// watches the response body for the provider's termination line.
//
// go-openai reports both a [DONE] line and a body cut short as io.EOF, so the
// tracker is the only way to tell them apart.
type transport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if tracker, ok := req.Context().Value(doneTrackerKey{}).(*doneTracker); ok && resp.Body != nil {
		resp.Body = &doneWatcher{ReadCloser: resp.Body, tracker: tracker}
	}
	return resp, nil
}

type doneTrackerKey struct{}

type doneTracker struct {
	seen atomic.Bool
}

func (d *doneTracker) Seen() bool {
	return d.seen.Load()
}

func withDoneTracker(ctx context.Context) (context.Context, *doneTracker) {
	tracker := &doneTracker{}
	return context.WithValue(ctx, doneTrackerKey{}, tracker), tracker
}

type doneWatcher struct {
	io.ReadCloser
	tracker *doneTracker
	// tail keeps the end of the previous read so a marker split across reads is found
	tail []byte
}

func (d *doneWatcher) Read(p []byte) (int, error) {
	n, err := d.ReadCloser.Read(p)
	if n > 0 && !d.tracker.Seen() {
		buf := append(append([]byte(nil), d.tail...), p[:n]...)
		if bytes.Contains(buf, doneMarker) {
			d.tracker.seen.Store(true)
		}
		keep := len(doneMarker) - 1
		if len(buf) > keep {
			buf = buf[len(buf)-keep:]
		}
		d.tail = buf
	}
	return n, err
}
