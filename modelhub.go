// Package modelhub holds the assets compiled into the server and CLI
// binaries.
package modelhub

import _ "embed"

// SeedCatalog is the starter catalog applied when MODELHUB_SEED_FILE=builtin
// and the models table is empty.
//
//go:embed seed/models.yaml
var SeedCatalog []byte

// APIDocs is the Markdown API reference served at /api-docs.
//
//go:embed docs/api.md
var APIDocs []byte
