// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package gc provides reusable byte buffer pooling to reduce garbage collection overhead.
// It wraps the [bytebufferpool] library behind a small interface so network fetch
// bodies and structured log lines can share buffers without importing it directly.
//
// [bytebufferpool]: https://github.com/valyala/bytebufferpool
package gc
