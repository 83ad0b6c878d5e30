// Package static embeds the files served under /static/
package static

import "embed"

//go:embed css
var FS embed.FS
