// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the command-line interface for the TLS certificate trust engine.
// It implements a Cobra-based CLI that verifies the chain a server presents (or a chain
// read from a file), asks on the terminal when a chain needs a decision, and manages the
// persistent trust store: remembered acceptances, imported certificates and the remote
// certificate repository. Results are rendered as markdown tables, ASCII trees or JSON.
package cli
