// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package trust holds the vocabulary shared by every part of the certificate
// trust engine: alerts, warning and reason flag sets, security ratings, the
// server identity a chain is verified against, and the final [Verdict].
//
// The packages under this directory implement the engine itself:
//
//   - store: certificate records, site acceptances and repository membership
//   - revocation: CRL and OCSP coordination
//   - repository: retrieval of missing certificates from a remote feed
//   - interaction: prioritised user prompts and their outcome
//   - verifier: the phase state machine that drives all of the above
package trust
