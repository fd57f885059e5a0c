// pkg/tools/schema.go
package tools

import (
	"encoding/json"
	"os"
	"time"
)

// Definition describes a tool the dialogue policy may invoke. InputSchema
// is a JSON Schema document; arguments are validated against it before the
// executor ever runs.
type Definition struct {
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version,omitempty"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	Timeout      string                 `json:"timeout,omitempty"`
	Idempotent   bool                   `json:"idempotent,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
}

// TimeoutOrDefault parses the definition's timeout, falling back to def
// when absent or unparseable.
func (d Definition) TimeoutOrDefault(def time.Duration) time.Duration {
	if d.Timeout == "" {
		return def
	}
	parsed, err := time.ParseDuration(d.Timeout)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// RegistryFile is the on-disk registry document. Deployments ship one to
// override built-in definitions (descriptions, timeouts, schemas) without
// a rebuild.
type RegistryFile struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Tools       []Definition `json:"tools"`
}

// LoadRegistryFile reads and parses a registry document.
func LoadRegistryFile(path string) (*RegistryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg RegistryFile
	err = json.Unmarshal(data, &reg)
	return &reg, err
}
