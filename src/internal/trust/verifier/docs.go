// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package verifier decides whether a presented certificate chain is trusted
// for a server.
//
// A verification is a sequence of [Phase] values. Each phase is handled by a
// transition that looks at the verification [Context] and the [Environment]
// and returns the next phase plus, when the verification has to wait, an
// [Effect] describing the I/O it is waiting for. Transitions never perform
// I/O and never write to the trust store. The [Verifier] trampoline applies
// transitions until one returns an effect or a terminal phase is reached;
// the caller performs the effect and hands the outcome back as an [Event]
// through [Verifier.Deliver].
//
// [Verifier.Run] is the usual driver: it performs every effect on its own
// goroutine (network fetches through a cancellable [netfetch.Batch],
// repository lookups, prompts) and loops until the verification finishes.
//
// Store writes are staged on the context and committed once a terminal phase
// is reached: acceptances, the global revoked list, downloaded intermediates
// and certificates retrieved from the repository. Aborted verifications and
// internal errors commit nothing.
//
// [netfetch.Batch]: github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch.Batch
package verifier
