// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package revocation decides which CRLs and OCSP responses a validated chain
// needs and interprets them once they are available.
//
// [Checker.Check] never performs I/O. It either returns the requests that are
// still missing or the final results; the caller fetches and calls Check
// again with everything fetched so far. Revocation failures are soft: a
// certificate that could not be checked caps the security rating at Half and
// sets [trust.ReasonUnableToCheckRevocation] instead of failing the
// verification.
package revocation
