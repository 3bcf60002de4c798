// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package trust_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
)

func TestWarningSet(t *testing.T) {
	w := trust.Warning(0).With(trust.WarnExpired).With(trust.WarnNameMismatch)

	assert.True(t, w.Has(trust.WarnExpired))
	assert.False(t, w.Has(trust.WarnExpired|trust.WarnAnonymous))
	assert.True(t, w.Any(trust.WarnExpired|trust.WarnAnonymous))
	assert.False(t, w.Has(0))
	assert.Equal(t, "expired|name_mismatch", w.String())
	assert.Equal(t, "none", trust.Warning(0).String())

	assert.True(t, w.Covers(trust.WarnExpired))
	assert.False(t, trust.WarnExpired.Covers(w))
	assert.Equal(t, trust.WarnNameMismatch, w.Without(trust.WarnExpired))
}

func TestSecurityRatingCap(t *testing.T) {
	tests := []struct {
		name string
		a, b trust.SecurityRating
		want trust.SecurityRating
	}{
		{name: "Full capped by Half", a: trust.RatingFull, b: trust.RatingHalf, want: trust.RatingHalf},
		{name: "Low stays Low", a: trust.RatingLow, b: trust.RatingHalf, want: trust.RatingLow},
		{name: "Full with Full", a: trust.RatingFull, b: trust.RatingFull, want: trust.RatingFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Cap(tt.b))
		})
	}
}

func TestAlertMatching(t *testing.T) {
	err := fmt.Errorf("verify: %w", trust.NewAlert(trust.AlertAccessDenied, "blacklisted leaf %s", "AB"))

	assert.True(t, errors.Is(err, trust.ErrAccessDenied))
	assert.False(t, errors.Is(err, trust.ErrUnknownCA))
	assert.Contains(t, err.Error(), "access_denied: blacklisted leaf AB")

	var alert *trust.Alert
	assert.True(t, errors.As(err, &alert))
	assert.Equal(t, trust.AlertAccessDenied, alert.Code)
}

func TestReasonsAndModes(t *testing.T) {
	r := trust.ReasonWeakKey.With(trust.ReasonUnableToCheckRevocation)
	assert.Equal(t, []string{"weak_key", "unable_to_check_revocation"}, r.Names())
	assert.True(t, r.Has(trust.ReasonWeakKey))

	assert.True(t, trust.PermanentlyConfirmed.Accepted())
	assert.False(t, trust.UserRejected.Accepted())
	assert.Equal(t, "example.com:443", trust.Identity{Host: "example.com.", Port: 443}.Address())
}
