package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeConfig maps a raw node config into a typed config struct.
func DecodeConfig(config map[string]any, out any) error {
	if config == nil {
		config = map[string]any{}
	}

	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode node config: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode node config: %w", err)
	}

	return nil
}
