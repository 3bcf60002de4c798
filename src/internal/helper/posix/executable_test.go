// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutableName(t *testing.T) {
	tests := []struct {
		name     string
		arg0     string
		expected string
	}{
		{name: "Relative path", arg0: "./trust", expected: "trust"},
		{name: "Just filename", arg0: "trust", expected: "trust"},
		{name: "Absolute unix path", arg0: "/usr/local/bin/trust", expected: "trust"},
		{name: "Windows path with exe", arg0: `C:\Program Files\trust.exe`, expected: "trust"},
		{name: "Trailing separator", arg0: "/usr/bin/", expected: DefaultExecutableName},
		{name: "Empty", arg0: "", expected: DefaultExecutableName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, executableName(tt.arg0))
		})
	}
}

func TestGetExecutableName(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = nil
	assert.Equal(t, DefaultExecutableName, GetExecutableName())

	os.Args = []string{"/opt/bin/engine"}
	assert.Equal(t, "engine", GetExecutableName())
}
