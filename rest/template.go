package rest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadTemplate reads a JSON template file and substitutes {name}
// placeholders with the given values before decoding. Collaborator
// payloads (realm, client, user definitions) ship as templates next to
// the binaries.
func LoadTemplate(path string, vars map[string]string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	text := string(data)
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", path, err)
	}
	return decoded, nil
}
