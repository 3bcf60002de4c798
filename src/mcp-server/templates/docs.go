// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package templates embeds the markdown the MCP server hands to clients: the
// server instructions, rendered with the registered tools, and the prompt
// templates whose "### User:" and "### Assistant:" markers split them into
// prompt messages.
//
//	data, err := templates.MagicEmbed.ReadFile(templates.TrustReview)
//	if err != nil {
//		return err
//	}
package templates
