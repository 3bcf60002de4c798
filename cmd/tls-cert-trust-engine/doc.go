// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// tls-cert-trust-engine decides whether the certificate chain of a TLS
// server is trusted, asks on the terminal when a chain needs a decision, and
// keeps remembered decisions in a local trust store.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/tls-cert-trust-engine/cmd/tls-cert-trust-engine@latest
//
// # Usage
//
//	tls-cert-trust-engine [GLOBAL FLAGS] COMMAND [FLAGS]
//
// # Commands
//
//	verify                 Verify a server (-H host -p port) or a chain file (-f)
//	acceptances list       List remembered decisions
//	acceptances forget FP  Forget the decisions for a SHA-256 fingerprint
//	repository refresh     Fetch and apply the certificate repository index
//	store import FILE      Import certificates (--kind root|intermediate|untrusted)
//	store status           Show record counts and pending changes
//
// # Global Flags
//
//	-c, --config   Configuration file, JSON or YAML (default: $TLS_TRUST_ENGINE_CONFIG)
//	    --policy   Override the interaction policy: prompt, deny or accept-session
//	-j, --json     Emit JSON instead of markdown
//
// # Examples
//
// Verify a server and show the validated path:
//
//	tls-cert-trust-engine verify -H example.com --tree
//
// Verify a saved chain against a name, without asking:
//
//	tls-cert-trust-engine --policy deny verify -f chain.pem --server-name example.com
//
// Trust a private root:
//
//	tls-cert-trust-engine store import corp-root.pem --kind root
//
// # Exit Codes
//
// The command exits 0 when the chain is accepted, 2 when it is rejected,
// 1 on any other failure and 130 when interrupted.
package main
