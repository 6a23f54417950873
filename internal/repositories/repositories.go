// package repositories provides persistence layer implementations for all model types.
package repositories

import (
	"encoding/json"
	"fmt"
)

// marshalColumn serializes a structured field into its JSON text column form.
func marshalColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal column: %w", err)
	}
	return string(data), nil
}

// unmarshalColumn deserializes a JSON text column into the target. Empty
// columns leave the target at its zero value.
func unmarshalColumn(data string, target any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("failed to unmarshal column: %w", err)
	}
	return nil
}
