// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package trust

import "fmt"

// AlertCode identifies a fatal verification outcome.
type AlertCode uint8

const (
	// AlertNone is the zero value and never appears in a failed verdict.
	AlertNone AlertCode = iota
	AlertCertificateRevoked
	AlertAccessDenied
	AlertUnknownCA
	AlertCertificateExpired
	AlertInsufficientSecurity
	AlertInternalError
	AlertBadCertificate
)

var alertNames = [...]string{
	AlertNone:                 "none",
	AlertCertificateRevoked:   "certificate_revoked",
	AlertAccessDenied:         "access_denied",
	AlertUnknownCA:            "unknown_ca",
	AlertCertificateExpired:   "certificate_expired",
	AlertInsufficientSecurity: "insufficient_security",
	AlertInternalError:        "internal_error",
	AlertBadCertificate:       "bad_certificate",
}

func (c AlertCode) String() string {
	if int(c) < len(alertNames) {
		return alertNames[c]
	}
	return fmt.Sprintf("alert(%d)", c)
}

// Alert is a fatal verification failure. It implements error, and
// [errors.Is] matches two alerts with the same code regardless of detail.
type Alert struct {
	Code   AlertCode
	Detail string
}

// NewAlert returns an alert with a formatted detail message.
func NewAlert(code AlertCode, format string, args ...any) *Alert {
	return &Alert{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func (a *Alert) Error() string {
	if a.Detail == "" {
		return "trust: fatal: " + a.Code.String()
	}
	return "trust: fatal: " + a.Code.String() + ": " + a.Detail
}

// Is reports whether target is an alert with the same code.
func (a *Alert) Is(target error) bool {
	t, ok := target.(*Alert)
	return ok && t.Code == a.Code
}

// Sentinel alerts for use with errors.Is.
var (
	ErrCertificateRevoked   = &Alert{Code: AlertCertificateRevoked}
	ErrAccessDenied         = &Alert{Code: AlertAccessDenied}
	ErrUnknownCA            = &Alert{Code: AlertUnknownCA}
	ErrCertificateExpired   = &Alert{Code: AlertCertificateExpired}
	ErrInsufficientSecurity = &Alert{Code: AlertInsufficientSecurity}
	ErrInternalError        = &Alert{Code: AlertInternalError}
	ErrBadCertificate       = &Alert{Code: AlertBadCertificate}
)
