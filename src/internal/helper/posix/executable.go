// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"strings"
)

// DefaultExecutableName is used when os.Args carries no program name.
const DefaultExecutableName = "tls-cert-trust-engine"

// GetExecutableName returns the program name without directory or ".exe"
// suffix, for use in CLI usage strings. Both '/' and '\' are treated as
// separators so Windows style paths are handled on any platform.
func GetExecutableName() string {
	if len(os.Args) == 0 {
		return DefaultExecutableName
	}
	return executableName(os.Args[0])
}

func executableName(arg0 string) string {
	name := arg0
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".exe")
	if name == "" {
		return DefaultExecutableName
	}
	return name
}
