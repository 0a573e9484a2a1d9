// Package xwhep is the HTTP transport of the XWHEP grid service. It moves raw
// entity documents and data payloads; it knows nothing about their content.
package xwhep

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/version"
)

const (
	pathGetApps      = "/getapps"
	pathGet          = "/get"
	pathSendWork     = "/sendwork"
	pathSendApp      = "/sendapp"
	pathSendData     = "/senddata"
	pathRemove       = "/remove"
	pathUploadData   = "/uploaddata"
	pathDownloadData = "/downloaddata"
	// keep the trailing slash
	pathEthAuth = "/ethauth/"

	paramLogin    = "XWLOGIN"
	paramPassword = "XWPASSWD"
	paramState    = "state"
	paramXMLDesc  = "XMLDESC"

	defaultTimeout = 60 * time.Second
)

// StatusError is returned when the server answers with a non-2xx code.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Path, e.Code)
}

// Credentials authenticate calls to the server. A non-empty State (obtained
// from Authenticate) takes precedence over login and password.
type Credentials struct {
	Login    string
	Password string
	State    string
}

func (c Credentials) apply(q url.Values) {
	if c.State != "" {
		q.Set(paramState, c.State)
		return
	}
	q.Set(paramLogin, c.Login)
	q.Set(paramPassword, c.Password)
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	Credentials       Credentials
	InsecureTLS       bool
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client talks to one XWHEP server. It is safe for concurrent use; the
// request limiter is shared by every caller.
type Client struct {
	baseURL *url.URL
	creds   Credentials
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewClient creates a Client from opts.
func NewClient(opts Options, log *zap.SugaredLogger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("xwhep: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("xwhep: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("xwhep: unsupported scheme %q", base.Scheme)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	}
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL: base,
		creds:   opts.Credentials,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		limiter: limiter,
		log:     log,
	}, nil
}

// WithCredentials returns a copy of c that authenticates with creds.
// The copy shares the HTTP client and the request limiter.
func (c *Client) WithCredentials(creds Credentials) *Client {
	cp := *c
	cp.creds = creds
	return &cp
}

// FetchEntity retrieves the raw document of the entity uid.
func (c *Client) FetchEntity(ctx context.Context, uid string) ([]byte, error) {
	return c.get(ctx, pathGet+"/"+url.PathEscape(uid), nil)
}

// SendEntity creates or replaces an entity from its raw document and returns
// the acknowledgement body.
func (c *Client) SendEntity(ctx context.Context, kind models.Kind, raw []byte) ([]byte, error) {
	var path string
	switch kind {
	case models.KindWork:
		path = pathSendWork
	case models.KindApp:
		path = pathSendApp
	case models.KindData:
		path = pathSendData
	default:
		return nil, fmt.Errorf("xwhep: cannot send entity of kind %q", kind)
	}

	q := url.Values{}
	q.Set(paramXMLDesc, string(raw))
	return c.get(ctx, path, q)
}

// ListApplications returns the raw listing of the applications visible to
// the current credentials.
func (c *Client) ListApplications(ctx context.Context) ([]byte, error) {
	return c.get(ctx, pathGetApps, nil)
}

// RemoveEntity deletes the entity uid.
func (c *Client) RemoveEntity(ctx context.Context, uid string) error {
	_, err := c.get(ctx, pathRemove+"/"+url.PathEscape(uid), nil)
	return err
}

// UploadBytes sends the content of the data uid as a multipart form.
func (c *Client) UploadBytes(ctx context.Context, uid string, r io.Reader, md5sum string, size int64) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(form, uid, r, md5sum, size))
	}()

	path := pathUploadData + "/" + url.PathEscape(uid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.do(req, path)
	if err != nil {
		_ = pr.Close()
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func writeUploadForm(form *multipart.Writer, uid string, r io.Reader, md5sum string, size int64) error {
	if err := form.WriteField("DATAUID", uid); err != nil {
		return err
	}
	if err := form.WriteField("DATAMD5SUM", md5sum); err != nil {
		return err
	}
	if err := form.WriteField("DATASIZE", strconv.FormatInt(size, 10)); err != nil {
		return err
	}
	part, err := form.CreateFormFile("DATAFILE", uid)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return form.Close()
}

// DownloadBytes streams the content of the data referenced by uri into w.
// Only the last path segment of uri is used; it is the data uid.
func (c *Client) DownloadBytes(ctx context.Context, uri string, w io.Writer) (int64, error) {
	uid := uri[strings.LastIndex(uri, "/")+1:]
	if uid == "" {
		return 0, fmt.Errorf("xwhep: no data uid in uri %q", uri)
	}

	path := pathDownloadData + "/" + url.PathEscape(uid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, nil), nil)
	if err != nil {
		return 0, err
	}
	return c.copyBody(req, path, w)
}

// DownloadURL streams an arbitrary http(s) URL into w, without credentials.
func (c *Client) DownloadURL(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	return c.copyBody(req, req.URL.Path, w)
}

func (c *Client) copyBody(req *http.Request, path string, w io.Writer) (int64, error) {
	resp, err := c.do(req, path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%s: read body: %w", path, err)
	}
	return n, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", path, err)
	}
	return body, nil
}

// do waits for the limiter, sends req and rejects non-2xx answers.
func (c *Client) do(req *http.Request, path string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.log.Debugw("xwhep request", "method", req.Method, "path", path, "status", resp.StatusCode, "latency", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{Path: path, Code: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	c.creds.apply(q)

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = q.Encode()
	return u.String()
}
