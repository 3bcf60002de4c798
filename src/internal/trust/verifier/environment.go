// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/metrics"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/revocation"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

var (
	// ErrNoStore is returned by New when the environment has no trust store.
	ErrNoStore = errors.New("verifier: environment has no trust store")

	// ErrNoNetwork is reported for fetches when the environment has no
	// network collaborator.
	ErrNoNetwork = errors.New("verifier: no network available")
)

// Options are the security thresholds of a verification.
type Options struct {
	// RSA and DSA keys below MinRSABits rate Low, below PreferredRSABits Half.
	MinRSABits       int
	PreferredRSABits int
	// EC keys below MinECBits rate Low, below PreferredECBits Half.
	MinECBits       int
	PreferredECBits int

	// StrictUnknownCA fails chains ending in an untrusted self-signed
	// certificate instead of asking about them.
	StrictUnknownCA bool

	Purpose x509chain.Purpose

	// Request limits for AIA downloads.
	MaxRequestTime time.Duration
	MaxIdleTime    time.Duration
}

// DefaultOptions returns the thresholds used when none are configured.
func DefaultOptions() Options {
	return Options{
		MinRSABits:       1024,
		PreferredRSABits: 2048,
		MinECBits:        224,
		PreferredECBits:  256,
		Purpose:          x509chain.PurposeServerAuth,
	}
}

// Environment is everything a verification may consult. Only Store is
// required; a nil Repository, Revocation or Gateway disables that part.
type Environment struct {
	Store      *truststore.Store
	Network    netfetch.Fetcher
	Clock      clockwork.Clock
	Repository *repository.Updater
	Revocation *revocation.Checker
	Gateway    *interaction.Gateway
	Logger     logger.Logger
	Metrics    *metrics.Metrics
	Options    Options

	// Trace, when set, is called after every phase transition. It runs on
	// the trampoline and must not block.
	Trace func(id string, from, to Phase)
}

func (env *Environment) withDefaults() *Environment {
	e := *env
	if e.Clock == nil {
		e.Clock = clockwork.NewRealClock()
	}
	if e.Network == nil {
		e.Network = noNetwork{}
	}
	e.Logger = logger.OrNop(e.Logger)
	if e.Options == (Options{}) {
		e.Options = DefaultOptions()
	}
	return &e
}

type noNetwork struct{}

func (noNetwork) Fetch(context.Context, netfetch.Request) ([]byte, error) { return nil, ErrNoNetwork }
