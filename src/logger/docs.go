// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package logger provides the Logger interface used across the trust engine
// and two implementations: CLILogger for human-readable terminal output and
// JSONLogger for line-delimited structured logs. JSONLogger builds each line
// in a pooled buffer, so it stays cheap under many concurrent verifications.
package logger
