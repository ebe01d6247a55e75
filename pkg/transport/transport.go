// Package transport builds the HTTP clients used to reach code generation
// backends. Besides the standard library client it offers a client that
// presents a Chrome TLS fingerprint over HTTP/1.1, an HTTP/2 variant with a
// full browser fingerprint, and a wrapper that zstd-compresses large request
// bodies.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tlsclient "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/klauspost/compress/zstd"
	utls "github.com/refraction-networking/utls"
)

const (
	KindDefault  = "default"
	KindChrome   = "chrome"
	KindChromeH2 = "chrome-h2"
)

// compressThreshold is the body size above which requests are zstd encoded.
const compressThreshold = 2048

// New returns a client for kind. The empty kind is the standard library
// client. compress wraps the transport with request body compression.
func New(kind string, timeout time.Duration, compress bool) (*http.Client, error) {
	var rt http.RoundTripper
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindDefault:
		rt = http.DefaultTransport
	case KindChrome:
		rt = NewTransport()
	case KindChromeH2:
		h2, err := newH2RoundTripper()
		if err != nil {
			return nil, err
		}
		rt = h2
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
	if compress {
		rt = &compressRT{inner: rt}
	}
	return &http.Client{Timeout: timeout, Transport: rt}, nil
}

// dialChromeTLS dials with a Chrome 120 ClientHello but restricts ALPN to
// http/1.1 so net/http never tries h2 on the custom connection.
func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		rawConn.Close()
		return nil, err
	}

	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
	if err != nil {
		rawConn.Close()
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			break
		}
	}

	tlsConn := utls.UClient(rawConn, &utls.Config{ServerName: host}, utls.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		rawConn.Close()
		return nil, err
	}
	if err := tlsConn.Handshake(); err != nil {
		rawConn.Close()
		return nil, err
	}
	return &h1Conn{Conn: tlsConn}, nil
}

// h1Conn hides ConnectionState so net/http does not detect h2.
type h1Conn struct {
	net.Conn
}

// NewTransport is the HTTP/1.1 transport with the Chrome fingerprint.
func NewTransport() *http.Transport {
	return &http.Transport{
		ForceAttemptHTTP2:  false,
		MaxIdleConns:       4,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: true,
		DialTLSContext:     dialChromeTLS,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// compressRT strips SDK telemetry headers and zstd-encodes bodies larger
// than compressThreshold.
type compressRT struct {
	inner http.RoundTripper
}

func (rt *compressRT) RoundTrip(req *http.Request) (*http.Response, error) {
	for k := range req.Header {
		if strings.HasPrefix(k, "X-Stainless") {
			req.Header.Del(k)
		}
	}

	if req.Body != nil && req.ContentLength > compressThreshold {
		raw, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		compressed, err := Compress(raw)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(compressed))
		req.ContentLength = int64(len(compressed))
		req.Header.Set("Content-Encoding", "zstd")
	}

	return rt.inner.RoundTrip(req)
}

// Compress encodes data with zstd at the default level.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// h2RoundTripper bridges tls-client's fhttp types to net/http.
type h2RoundTripper struct {
	client tlsclient.HttpClient
}

func newH2RoundTripper() (*h2RoundTripper, error) {
	client, err := tlsclient.NewHttpClient(tlsclient.NewNoopLogger(),
		tlsclient.WithClientProfile(profiles.Chrome_120),
		tlsclient.WithRandomTLSExtensionOrder(),
		tlsclient.WithNotFollowRedirects(),
	)
	if err != nil {
		return nil, fmt.Errorf("create chrome h2 client: %w", err)
	}
	return &h2RoundTripper{client: client}, nil
}

func (rt *h2RoundTripper) RoundTrip(hReq *http.Request) (*http.Response, error) {
	var body io.Reader
	if hReq.Body != nil {
		body = hReq.Body
	}
	fReq, err := fhttp.NewRequest(hReq.Method, hReq.URL.String(), body)
	if err != nil {
		return nil, err
	}
	// Headers are added one by one; replacing the map drops fhttp defaults.
	for k, vv := range hReq.Header {
		for _, v := range vv {
			fReq.Header.Add(k, v)
		}
	}
	if hReq.ContentLength > 0 {
		fReq.ContentLength = hReq.ContentLength
	}

	fResp, err := rt.client.Do(fReq)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		Status:        fResp.Status,
		StatusCode:    fResp.StatusCode,
		Proto:         fResp.Proto,
		ProtoMajor:    fResp.ProtoMajor,
		ProtoMinor:    fResp.ProtoMinor,
		Header:        http.Header(fResp.Header),
		Body:          fResp.Body,
		ContentLength: fResp.ContentLength,
		Close:         fResp.Close,
		Uncompressed:  fResp.Uncompressed,
		Trailer:       http.Header(fResp.Trailer),
		Request:       hReq,
	}, nil
}
