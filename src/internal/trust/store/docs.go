// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package truststore holds the certificate collections, site acceptances and
// repository membership lists the trust engine consults on every
// verification.
//
// Records are keyed by the SHA-256 fingerprint of their DER encoding and
// additionally indexed by every repository id they answer to, so a lookup by
// issuer id finds a CA no matter which feed entry delivered it.
//
// Deletion is logical: [Store.Remove] marks a record [StatusDeleted] and the
// record disappears physically on the next [Store.Flush]. Flush writes the
// persistent part of the store through a [Persister]; [BoltPersister] keeps it
// in a bbolt file.
package truststore
