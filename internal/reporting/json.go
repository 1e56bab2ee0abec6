package reporting

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON writes d as indented JSON followed by a newline.
func WriteJSON(w io.Writer, d *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode report document: %w", err)
	}
	return nil
}
