// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package netfetch is the network collaborator of the trust engine. It fetches
// CRLs, OCSP responses, AIA issuers and repository feeds over HTTP(S).
//
// Every request carries two limits: a total request time and an idle time
// that resets whenever response bytes arrive. Both surface as ordinary fetch
// errors wrapping [ErrFetchFailed]; callers never see a separate timeout type.
//
// Requests belonging to one verification can be grouped in a [Batch] so they
// are cancelled together when the verification is aborted.
package netfetch
