package cmdutil

import (
	"encoding/json"
	"io"
)

// WriteJSON writes v as JSON to w, followed by a newline. Reports stay
// machine-readable either way; pretty only adds indentation.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
