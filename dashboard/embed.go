// Package dashboard embeds the watch-mode web UI.
//
// The page loads the latest ranking from /api/results and refreshes rows
// from the /api/sse stream. It is served by the server package at "/".
package dashboard

import "embed"

// Assets holds the dashboard files:
//
//	assets/
//	  index.html    - ranking table with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
