// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package config loads the trust engine configuration.
//
// Files are JSON or YAML, chosen by extension, and are checked against an
// embedded JSON schema before they are decoded. Example:
//
//	store:
//	  path: /var/lib/tls-trust/store.db
//	repository:
//	  url: https://certs.example.net/feed
//	  retryWindow: 24h
//	security:
//	  strictUnknownCA: true
//	interaction:
//	  policy: deny
package config
