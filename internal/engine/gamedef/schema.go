package gamedef

import _ "embed"

// DefaultSchemaJSON is the published JSON schema game.yaml documents are
// validated against in step 3 of the load pipeline (§4.A, §6.4), unless the
// SKIP_SCHEMA_VALIDATION flag bypasses it.
//
//go:embed schema.json
var DefaultSchemaJSON []byte
