// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package trust

import (
	"net"
	"strconv"
	"strings"
)

// Scope separates ordinary server acceptances from applet scoped ones.
type Scope uint8

const (
	ScopeServer Scope = iota
	ScopeApplet
)

func (s Scope) String() string {
	if s == ScopeApplet {
		return "applet"
	}
	return "server"
}

// ConfirmMode is the durability of a user's trust override.
type ConfirmMode uint8

const (
	NotConfirmed ConfirmMode = iota
	SessionConfirmed
	PermanentlyConfirmed
	UserRejected
	AppletSessionConfirmed
)

func (m ConfirmMode) String() string {
	switch m {
	case SessionConfirmed:
		return "session_confirmed"
	case PermanentlyConfirmed:
		return "permanently_confirmed"
	case UserRejected:
		return "user_rejected"
	case AppletSessionConfirmed:
		return "applet_session_confirmed"
	}
	return "not_confirmed"
}

// Accepted reports whether m records a positive decision.
func (m ConfirmMode) Accepted() bool {
	return m == SessionConfirmed || m == PermanentlyConfirmed || m == AppletSessionConfirmed
}

// Identity describes the server side of the connection a chain was presented on.
type Identity struct {
	Host  string
	Port  int
	Scope Scope

	// TLSVersion is the negotiated protocol version (tls.VersionTLS12 etc).
	// Zero means unknown and is not rated.
	TLSVersion uint16
	// CipherSuite is informational only.
	CipherSuite uint16

	Anonymous                bool
	CipherDisabled           bool
	NoRenegotiationExtension bool

	// StapledOCSP is the OCSP response delivered during the handshake, if any.
	StapledOCSP []byte
}

// Address returns host:port.
func (id Identity) Address() string {
	return net.JoinHostPort(strings.TrimSuffix(id.Host, "."), strconv.Itoa(id.Port))
}

// Verdict is the final result of a verification.
type Verdict struct {
	Accepted bool
	Alert    *Alert

	Rating   SecurityRating
	Reasons  LowSecurityReason
	Warnings Warning

	// Mode is the acceptance that decided the verdict, if one did.
	Mode ConfirmMode

	// Chain is the validated chain, leaf first, in DER form.
	Chain [][]byte
	// Names are the host names extracted from the leaf.
	Names []string
}

// Err returns the verdict's alert as an error, or nil when accepted.
func (v *Verdict) Err() error {
	if v == nil || v.Alert == nil {
		return nil
	}
	return v.Alert
}
