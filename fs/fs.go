// Package appfs embeds the application's static assets:
// goose migrations, email templates and the common-passwords list.
package appfs

import "embed"

//go:embed migrations all:templates assets
var FS embed.FS
