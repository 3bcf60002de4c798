// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package interaction turns verification findings into a single prioritized
// trust question and records the answer.
//
// A [Description] is structured data: the primary [Category] that triggered
// the prompt, the subordinate categories in priority order, the server and
// the chain. Rendering it is up to the [Prompter].
package interaction
