package web

import _ "embed"

// usageDoc is the Markdown shown on the landing page.
//
//go:embed docs/usage.md
var usageDoc string
