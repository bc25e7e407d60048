package internal

import "embed"

//go:embed bordercrop.toml
var InternalFS embed.FS

const DefaultConfigName = "bordercrop.toml"
