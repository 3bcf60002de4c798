// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

// Effect is I/O a suspended verification waits for. Each effect is answered
// by exactly one kind of [Event].
type Effect interface {
	// Accepts reports whether ev answers the effect.
	Accepts(ev Event) bool
	String() string
}

// Event is the outcome of an [Effect].
type Event interface {
	event()
}

// FetchPurpose says why a verification fetches.
type FetchPurpose uint8

const (
	FetchAIA FetchPurpose = iota
	FetchRevocation
)

func (p FetchPurpose) String() string {
	if p == FetchRevocation {
		return "revocation"
	}
	return "aia"
}

// Fetch asks for every request to be fetched in the verification's batch.
type Fetch struct {
	Purpose  FetchPurpose
	Requests []netfetch.Request
}

func (Fetch) Accepts(ev Event) bool {
	_, ok := ev.(Fetched)
	return ok
}

func (f Fetch) String() string { return "fetch " + f.Purpose.String() }

// LookupRepository asks the repository for the certificates published
// under ID in the feed of Kind.
type LookupRepository struct {
	Kind truststore.Kind
	ID   x509certs.ID
}

func (LookupRepository) Accepts(ev Event) bool {
	_, ok := ev.(RepositoryFetched)
	return ok
}

func (l LookupRepository) String() string {
	return "repository lookup " + repository.AttemptKey(l.Kind, l.ID)
}

// AwaitRepositoryBatch asks to wait for the shared repository index
// refresh, starting one if none is running.
type AwaitRepositoryBatch struct{}

func (AwaitRepositoryBatch) Accepts(ev Event) bool {
	_, ok := ev.(RepositoryBatchDone)
	return ok
}

func (AwaitRepositoryBatch) String() string { return "await repository batch" }

// Prompt asks a human about Description.
type Prompt struct {
	Description *interaction.Description
}

func (Prompt) Accepts(ev Event) bool {
	_, ok := ev.(Decided)
	return ok
}

func (Prompt) String() string { return "prompt" }

// Fetched answers [Fetch]. Results keep the order of the requests.
type Fetched struct {
	Results []netfetch.Result
}

// RepositoryFetched answers [LookupRepository].
type RepositoryFetched struct {
	Entries []repository.Entry
	Err     error
}

// RepositoryBatchDone answers [AwaitRepositoryBatch].
type RepositoryBatchDone struct {
	Err error
}

// Decided answers [Prompt].
type Decided struct {
	Decision interaction.Decision
	Err      error
}

func (Fetched) event() {}
func (RepositoryFetched) event() {}
func (RepositoryBatchDone) event() {}
func (Decided) event() {}
