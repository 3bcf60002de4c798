// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509chain is the certificate capability the trust engine is built on.
// It provides:
//   - [Handler]: loading a presented chain, building the path to a trust anchor
//     and reporting per-certificate findings (missing issuer, bad signature,
//     CA flags, expiry, purpose, revocation).
//   - Key and signature strength classification.
//   - [OCSP] request creation and response validation, and [CRL] parsing.
//   - Capture of the chain a TLS server presents.
//   - Table and tree rendering of a validated path.
//
// Cryptographic verification itself is delegated to crypto/x509 and
// golang.org/x/crypto/ocsp.
//
// [OCSP]: https://grokipedia.com/page/Online_Certificate_Status_Protocol
// [CRL]: https://grokipedia.com/page/Certificate_revocation_list
package x509chain
