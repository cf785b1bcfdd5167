package assets

import _ "embed"

// FallbackImage is served for Fallback when the asset directory has no file of that name.
//
//go:embed fallback.png
var FallbackImage []byte
