// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509certs provides encoding, decoding and identification of [X.509] certificates.
//
// It decodes [PEM], DER and [PKCS7] inputs and derives the two identifiers the
// trust engine keys everything on:
//
//   - [Fingerprint]: SHA-256 of the DER encoding, one per concrete certificate.
//   - [ID]: the repository identifier, derived from a distinguished name and
//     key material so that re-issued copies of the same CA map to one id.
//
// [X.509]: https://grokipedia.com/page/X.509
// [PKCS7]: https://grokipedia.com/page/PKCS_7
// [PEM]: https://grokipedia.com/page/PEM#privacy-enhanced-mail
package x509certs
