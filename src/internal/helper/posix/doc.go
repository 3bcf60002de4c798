// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides small [POSIX] oriented helpers shared by the binaries,
// currently only the executable name used in cobra usage strings.
//
// [POSIX]: https://grokipedia.com/page/POSIX
package posix
