package main

import (
	"encoding/json"
	"io"
)

// writeJSON encodes v as indented JSON. Titles and descriptions are written as-is,
// without HTML escaping.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
