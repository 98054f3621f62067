// Package webdav implements the WebDAV transport, registered under the
// "webdav" (plain HTTP) and "webdavs" (TLS) schemes. Listing uses a
// Depth-1 PROPFIND on the collection; uploads and downloads are plain
// PUT and GET.
package webdav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/meigma/drift/backend"
)

func init() {
	backend.Register("webdav", true, factory("http"))
	backend.Register("webdavs", true, factory("https"))
}

// maxRedirects caps how many redirects a single request may follow.
const maxRedirects = 10

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:prop><D:resourcetype/><D:getcontentlength/></D:prop></D:propfind>`

// Backend talks to a single WebDAV collection.
type Backend struct {
	client    *http.Client
	base      *url.URL
	username  string
	password  string
	connected bool
}

func factory(httpScheme string) backend.Factory {
	return func(ctx context.Context, u *backend.ParsedURL) (backend.Backend, error) {
		return New(ctx, u, httpScheme)
	}
}

// New connects to the collection named by the URL path, creating
// missing intermediate collections on the way.
func New(ctx context.Context, u *backend.ParsedURL, httpScheme string) (backend.Backend, error) {
	base := &url.URL{
		Scheme: httpScheme,
		Host:   u.HostPort(),
		Path:   u.Path,
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	b := &Backend{
		base:     base,
		username: u.Username,
		password: u.Password,
	}
	if err := b.Reset(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Put uploads the local file under remoteName.
func (b *Backend) Put(ctx context.Context, localPath, remoteName string) error {
	if err := b.ready("put", remoteName); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}

	req, err := b.request(ctx, http.MethodPut, remoteName, f)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}
	req.ContentLength = info.Size()

	resp, err := b.client.Do(req)
	if err != nil {
		return backend.Wrap(backend.KindTransient, "put", remoteName, err)
	}
	defer drain(resp)
	return classifyStatus("put", remoteName, resp.StatusCode)
}

// Get downloads remoteName into localPath.
func (b *Backend) Get(ctx context.Context, remoteName, localPath string) error {
	if err := b.ready("get", remoteName); err != nil {
		return err
	}

	req, err := b.request(ctx, http.MethodGet, remoteName, nil)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "get", remoteName, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return backend.Wrap(backend.KindTransient, "get", remoteName, err)
	}
	defer drain(resp)
	if err := classifyStatus("get", remoteName, resp.StatusCode); err != nil {
		return err
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "get", remoteName, err)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		dst.Close()
		return backend.Wrap(backend.KindTransient, "get", remoteName, err)
	}
	if err := dst.Close(); err != nil {
		return backend.Wrap(backend.KindFatal, "get", remoteName, err)
	}
	return nil
}

// List names the members of the collection via a Depth-1 PROPFIND.
func (b *Backend) List(ctx context.Context) ([]string, error) {
	if err := b.ready("list", ""); err != nil {
		return nil, err
	}

	resp, err := b.propfind(ctx, "", "1")
	if err != nil {
		return nil, backend.Wrap(backend.KindTransient, "list", "", err)
	}
	defer drain(resp)
	if err := classifyStatus("list", "", resp.StatusCode); err != nil {
		return nil, err
	}

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, backend.Errf(backend.KindProtocol, "list", "", "bad PROPFIND response: %v", err)
	}

	var names []string
	for _, r := range ms.Responses {
		href, err := b.memberPath(r.Href)
		if err != nil {
			return nil, backend.Wrap(backend.KindProtocol, "list", "", err)
		}
		// Collections come back with trailing slashes, including the
		// collection itself.
		if strings.HasSuffix(href, "/") {
			continue
		}
		names = append(names, path.Base(href))
	}
	return names, nil
}

// memberPath extracts the path of one PROPFIND href. Servers may answer
// with absolute URLs; an href naming a different host means the server
// is pointing us somewhere we never asked for, and trusting it would
// let a read from the wrong location pass as valid.
func (b *Backend) memberPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unparseable href %q: %w", raw, err)
	}
	if u.Hostname() != "" && u.Hostname() != b.base.Hostname() {
		return "", fmt.Errorf("href %q names foreign host %q", raw, u.Hostname())
	}
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return "", fmt.Errorf("unparseable href %q: %w", raw, err)
	}
	return p, nil
}

// Delete removes remoteName from the collection.
func (b *Backend) Delete(ctx context.Context, remoteName string) error {
	if err := b.ready("delete", remoteName); err != nil {
		return err
	}

	req, err := b.request(ctx, http.MethodDelete, remoteName, nil)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "delete", remoteName, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return backend.Wrap(backend.KindTransient, "delete", remoteName, err)
	}
	defer drain(resp)
	return classifyStatus("delete", remoteName, resp.StatusCode)
}

// Query returns the size of remoteName via HEAD.
func (b *Backend) Query(ctx context.Context, remoteName string) (int64, error) {
	if err := b.ready("query", remoteName); err != nil {
		return 0, err
	}

	req, err := b.request(ctx, http.MethodHead, remoteName, nil)
	if err != nil {
		return 0, backend.Wrap(backend.KindFatal, "query", remoteName, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, backend.Wrap(backend.KindTransient, "query", remoteName, err)
	}
	defer drain(resp)
	if err := classifyStatus("query", remoteName, resp.StatusCode); err != nil {
		return 0, err
	}
	if resp.ContentLength < 0 {
		return 0, backend.Errf(backend.KindProtocol, "query", remoteName, "server sent no content length")
	}
	return resp.ContentLength, nil
}

// Reset rebuilds the HTTP client and re-verifies the collection,
// creating it with MKCOL if the server reports it missing.
func (b *Backend) Reset(ctx context.Context) error {
	host := b.base.Hostname()
	b.client = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			// Refusing cross-host redirects keeps credentials from
			// leaking to a server we never asked for.
			if req.URL.Hostname() != host {
				return fmt.Errorf("redirect to foreign host %q", req.URL.Hostname())
			}
			b.setAuth(req)
			return nil
		},
	}
	b.connected = true

	resp, err := b.propfind(ctx, "", "0")
	if err != nil {
		b.connected = false
		return backend.Wrap(backend.KindTransient, "reset", b.base.String(), err)
	}
	drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		if err := b.makeCollection(ctx); err != nil {
			b.connected = false
			return err
		}
		return nil
	}
	if err := classifyStatus("reset", b.base.String(), resp.StatusCode); err != nil {
		b.connected = false
		return err
	}
	return nil
}

// Close marks the backend unusable until the next Reset.
func (b *Backend) Close() error {
	b.connected = false
	if b.client != nil {
		b.client.CloseIdleConnections()
	}
	return nil
}

// makeCollection issues MKCOL for each missing segment of the base
// path, root first.
func (b *Backend) makeCollection(ctx context.Context) error {
	segments := strings.Split(strings.Trim(b.base.Path, "/"), "/")
	built := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		built += "/" + seg
		u := *b.base
		u.Path = built
		req, err := http.NewRequestWithContext(ctx, "MKCOL", u.String(), nil)
		if err != nil {
			return backend.Wrap(backend.KindFatal, "mkcol", built, err)
		}
		b.setAuth(req)
		resp, err := b.client.Do(req)
		if err != nil {
			return backend.Wrap(backend.KindTransient, "mkcol", built, err)
		}
		drain(resp)
		// 405 means the collection already exists.
		if resp.StatusCode == http.StatusMethodNotAllowed {
			continue
		}
		if err := classifyStatus("mkcol", built, resp.StatusCode); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) propfind(ctx context.Context, name, depth string) (*http.Response, error) {
	req, err := b.request(ctx, "PROPFIND", name, bytes.NewReader([]byte(propfindBody)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", depth)
	req.Header.Set("Content-Type", `application/xml; charset="utf-8"`)
	return b.client.Do(req)
}

func (b *Backend) request(ctx context.Context, method, name string, body io.Reader) (*http.Request, error) {
	u := *b.base
	if name != "" {
		u.Path = b.base.Path + name
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	b.setAuth(req)
	return req, nil
}

func (b *Backend) setAuth(req *http.Request) {
	if b.username != "" {
		req.SetBasicAuth(b.username, b.password)
	}
}

func (b *Backend) ready(op, target string) error {
	if !b.connected {
		return backend.Errf(backend.KindFatal, op, target, "backend is closed")
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// classifyStatus maps an HTTP status onto the backend taxonomy. Auth
// failures are fatal, 404 is KindNotFound, other client errors are
// protocol errors, and server errors stay transient.
func classifyStatus(op, target string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return backend.Errf(backend.KindNotFound, op, target, "server returned %d", status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return backend.Errf(backend.KindFatal, op, target, "server returned %d", status)
	case status >= 400 && status < 500:
		return backend.Errf(backend.KindProtocol, op, target, "server returned %d", status)
	default:
		return backend.Errf(backend.KindTransient, op, target, "server returned %d", status)
	}
}

type multistatus struct {
	XMLName   xml.Name   `xml:"multistatus"`
	Responses []davEntry `xml:"response"`
}

type davEntry struct {
	Href string `xml:"href"`
}
