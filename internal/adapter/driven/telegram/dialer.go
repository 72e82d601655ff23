package telegram

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

func init() {
	proxy.RegisterDialerType("http", newConnectDialer)
	proxy.RegisterDialerType("https", newConnectDialer)
}

// dialerFor returns a context dialer that reaches Telegram through p, or the
// direct dialer when p is nil. socks5 and socks5h come from x/net/proxy; http
// and https use the CONNECT dialer registered above.
func dialerFor(p *model.Proxy) (proxy.ContextDialer, error) {
	if p == nil {
		return &net.Dialer{Timeout: 30 * time.Second}, nil
	}

	d, err := proxy.FromURL(p.URL(), &net.Dialer{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("build dialer for %s: %w", p.Addr(), err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("dialer for %s scheme %q does not support contexts", p.Addr(), p.Protocol)
	}
	return cd, nil
}

// connectDialer tunnels TCP connections through an HTTP proxy with CONNECT.
type connectDialer struct {
	proxyURL *url.URL
	forward  proxy.Dialer
}

func newConnectDialer(u *url.URL, forward proxy.Dialer) (proxy.Dialer, error) {
	return &connectDialer{proxyURL: u, forward: forward}, nil
}

func (d *connectDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *connectDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := dialForward(ctx, d.forward, network, d.proxyURL.Host)
	if err != nil {
		return nil, fmt.Errorf("dial proxy %s: %w", d.proxyURL.Host, err)
	}

	if d.proxyURL.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: d.proxyURL.Hostname(), MinVersion: tls.VersionTLS12})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake with proxy %s: %w", d.proxyURL.Host, err)
		}
		conn = tlsConn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if user := d.proxyURL.User; user != nil {
		password, _ := user.Password()
		creds := base64.StdEncoding.EncodeToString([]byte(user.Username() + ":" + password))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send CONNECT to %s: %w", d.proxyURL.Host, err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read CONNECT response from %s: %w", d.proxyURL.Host, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy %s refused CONNECT to %s: %s", d.proxyURL.Host, addr, resp.Status)
	}

	_ = conn.SetDeadline(time.Time{})

	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

func dialForward(ctx context.Context, forward proxy.Dialer, network, addr string) (net.Conn, error) {
	if cd, ok := forward.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return forward.Dial(network, addr)
}

// bufferedConn drains bytes the proxy sent right after its CONNECT response.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
