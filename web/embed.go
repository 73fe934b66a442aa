// Package web carries the embedded status UI served at the daemon root.
package web

import "embed"

// Content holds the embedded frontend files.
//
//go:embed index.html app.js styles.css
var Content embed.FS
