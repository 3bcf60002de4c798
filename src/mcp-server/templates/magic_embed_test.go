// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package templates

import (
	"strings"
	"testing"
)

func TestMagicEmbed_ReadFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		contains string
		wantErr  bool
	}{
		{name: "instructions", filename: Instructions, contains: "{{range .Tools}}"},
		{name: "trust review prompt", filename: TrustReview, contains: "### Assistant:"},
		{name: "non-existent file", filename: "non-existent.md", wantErr: true},
		{name: "invalid path", filename: "../invalid.md", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MagicEmbed.ReadFile(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MagicEmbed.ReadFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !strings.Contains(string(data), tt.contains) {
				t.Errorf("MagicEmbed.ReadFile(%q) does not contain %q", tt.filename, tt.contains)
			}
		})
	}
}

func TestMagicEmbed_ReadDir(t *testing.T) {
	entries, err := MagicEmbed.ReadDir(".")
	if err != nil {
		t.Fatalf("MagicEmbed.ReadDir() error = %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	for _, want := range []string{Instructions, TrustReview} {
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Errorf("template %s not embedded, have %v", want, names)
		}
	}
}
