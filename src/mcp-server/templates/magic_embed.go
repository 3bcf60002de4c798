// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package templates

import (
	"embed"
	"io/fs"
)

//go:embed *.md
var embeddedFS embed.FS

// EmbedFS is the read access the server needs to its templates.
type EmbedFS interface {
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// Names of the embedded templates.
const (
	Instructions = "instructions.md"
	TrustReview  = "trust-review.md"
)

// MagicEmbed holds the server instructions and prompt templates.
//
//	tmpl, err := templates.MagicEmbed.ReadFile(templates.Instructions)
var MagicEmbed EmbedFS = embeddedFS
