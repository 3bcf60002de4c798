// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ErrNoPeerCertificates is returned when a server completes the handshake
// without presenting a certificate.
var ErrNoPeerCertificates = errors.New("x509chain: no certificates received from server")

// RemoteChain is what a server presented during one TLS handshake.
type RemoteChain struct {
	Certificates []*x509.Certificate
	Version      uint16
	CipherSuite  uint16
	// OCSPResponse is the stapled response, if the server sent one.
	OCSPResponse []byte
}

// FetchRemoteChain performs a TLS handshake with hostname:port and captures
// the presented chain without verifying it. Verification is the caller's job.
func FetchRemoteChain(ctx context.Context, hostname string, port int, timeout time.Duration) (*RemoteChain, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName: hostname,
			// The handshake only captures the chain; the trust engine decides.
			InsecureSkipVerify: true,
		},
	}

	addr := net.JoinHostPort(hostname, strconv.Itoa(port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, ErrNoPeerCertificates
	}

	return &RemoteChain{
		Certificates: state.PeerCertificates,
		Version:      state.Version,
		CipherSuite:  state.CipherSuite,
		OCSPResponse: state.OCSPResponse,
	}, nil
}
