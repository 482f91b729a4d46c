package transfer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultChunkSize = 1024
	// Upper bound on how much of an error response body is read (and thrown away) before closing it.
	maxDiscardBytes = 64 * 1024
)

var (
	errShortAccept      = errors.New("data callback accepted fewer bytes than offered")
	errProgressAborted  = errors.New("progress callback aborted the transfer")
	errRangeUnsupported = errors.New("server ignored the range request")
)

// HTTP performs a single GET request, streaming the response body through the data callback.
type HTTP struct {
	opts       Options
	onData     DataFunc
	onProgress ProgressFunc

	status     int
	diagnostic string
}

var _ Transfer = &HTTP{}

// NewHTTP is the default Factory.
func NewHTTP() (Transfer, error) {
	return &HTTP{}, nil
}

func (t *HTTP) log() *zap.SugaredLogger {
	return zap.S().Named("transfer").With("url", t.opts.URL)
}

func (t *HTTP) Configure(opts Options) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	t.opts = opts
}

func (t *HTTP) SetDataCallback(f DataFunc) {
	t.onData = f
}

func (t *HTTP) SetProgressCallback(f ProgressFunc) {
	t.onProgress = f
}

func (t *HTTP) StatusCode() int {
	return t.status
}

func (t *HTTP) Diagnostic() string {
	return t.diagnostic
}

func (t *HTTP) client() *http.Client {
	dialer := &net.Dialer{
		Timeout:   t.opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: t.opts.ConnectTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !t.opts.VerifyTLS,
		},
		// A custom TLSClientConfig turns off HTTP/2 unless it is forced back on
		ForceAttemptHTTP2:  t.opts.HTTP2,
		DisableCompression: true,
	}
	client := &http.Client{Transport: transport}
	if !t.opts.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

func (t *HTTP) Perform(ctx context.Context) Result {
	log := t.log()
	client := t.client()
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.opts.URL, nil)
	if err != nil {
		return t.fail(ResultOtherError, fmt.Errorf("invalid request: %w", err))
	}
	if t.opts.UserAgent != "" {
		req.Header.Set("User-Agent", t.opts.UserAgent)
	}
	if t.opts.ResumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", t.opts.ResumeFrom))
		log.Debugf("requesting content from offset %d", t.opts.ResumeFrom)
	}

	resp, err := client.Do(req)
	if err != nil {
		return t.fail(t.classify(ctx, err), err)
	}
	defer resp.Body.Close()
	t.status = resp.StatusCode
	log.Debugf("response: %s (%s), content length %d", resp.Status, resp.Proto, resp.ContentLength)

	if t.opts.ResumeFrom > 0 {
		switch resp.StatusCode {
		case http.StatusRequestedRangeNotSatisfiable:
			return t.fail(ResultResumeRejected, fmt.Errorf("range not satisfiable: %s", resp.Status))
		case http.StatusOK:
			return t.fail(ResultResumeRejected, errRangeUnsupported)
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		// The transfer itself worked; interpreting the status is the caller's job
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscardBytes))
		t.diagnostic = resp.Status
		return ResultOK
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	return t.stream(ctx, resp.Body, total)
}

func (t *HTTP) stream(ctx context.Context, body io.Reader, total int64) Result {
	buf := make([]byte, t.opts.ChunkSize)
	var now int64
	for {
		if !t.progress(total, now) {
			return t.fail(ResultAbortedByCallback, errProgressAborted)
		}
		n, err := body.Read(buf)
		if n > 0 {
			if t.onData != nil && t.onData(buf[:n]) != n {
				return t.fail(ResultAbortedByCallback, errShortAccept)
			}
			now += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return t.fail(t.classify(ctx, err), err)
		}
	}
	if !t.progress(total, now) {
		return t.fail(ResultAbortedByCallback, errProgressAborted)
	}
	if total > 0 && now < total {
		return t.fail(ResultNetworkError, fmt.Errorf("received %d of %d bytes: %w", now, total, io.ErrUnexpectedEOF))
	}
	return ResultOK
}

func (t *HTTP) progress(total, now int64) bool {
	if t.onProgress == nil {
		return true
	}
	return t.onProgress(total, now)
}

func (t *HTTP) classify(ctx context.Context, err error) Result {
	// *url.Error satisfies net.Error itself, so look at what it wraps
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var certErr *tls.CertificateVerificationError
	var netErr net.Error
	switch {
	case ctx.Err() != nil:
		// Caller gave up on the transfer, same as a callback abort
		return ResultAbortedByCallback
	case errors.As(err, &certErr):
		return ResultOtherError
	case errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &netErr):
		return ResultNetworkError
	default:
		return ResultOtherError
	}
}

func (t *HTTP) fail(result Result, err error) Result {
	t.diagnostic = err.Error()
	t.log().Debugf("transfer failed (%v): %v", result, err)
	return result
}
