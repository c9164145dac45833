package health

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bbab/servicecenter/internal/models"
)

const (
	defaultSSLTimeout = 10 * time.Second
	defaultSSLPort    = "443"
)

// ErrSSLNotConfigured marks an organization without a certificate target.
var ErrSSLNotConfigured = errors.New("ssl: not configured")

// SSLInspector performs a raw TLS handshake against a host and reports the
// leaf certificate. Verification is skipped on purpose: an expired or
// mis-issued certificate is exactly what the snapshot needs to surface.
type SSLInspector struct {
	timeout time.Duration
	now     func() time.Time
}

// NewSSLInspector constructs a certificate inspector.
func NewSSLInspector(timeout time.Duration) *SSLInspector {
	if timeout <= 0 {
		timeout = defaultSSLTimeout
	}
	return &SSLInspector{timeout: timeout, now: time.Now}
}

// WithClock overrides the clock, primarily for tests.
func (i *SSLInspector) WithClock(now func() time.Time) *SSLInspector {
	if now != nil {
		i.now = now
	}
	return i
}

// Fetch connects to the organization's SSL host and inspects its certificate.
func (i *SSLInspector) Fetch(ctx context.Context, org models.Organization) (*SSLResult, error) {
	host := strings.TrimSpace(org.SSLHost)
	if host == "" {
		return nil, ErrSSLNotConfigured
	}

	addr := host
	serverName := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		serverName = h
	} else {
		addr = net.JoinHostPort(host, defaultSSLPort)
	}

	dialCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: i.timeout},
		Config: &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: true, //nolint:gosec // inspection, not trust
		},
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssl: handshake with %s: %w", addr, err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, errors.New("ssl: connection is not TLS")
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, fmt.Errorf("ssl: %s presented no certificate", addr)
	}

	leaf := certs[0]
	days := int(leaf.NotAfter.Sub(i.now()).Hours() / 24)

	return &SSLResult{
		Host:          host,
		Issuer:        leaf.Issuer.CommonName,
		Subject:       leaf.Subject.CommonName,
		NotAfter:      leaf.NotAfter,
		DaysRemaining: days,
	}, nil
}
