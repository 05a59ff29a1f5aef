package webhooks

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed mapping.yaml
var mappingYAML []byte

// UnknownStatusError: the provider sent a status (or resource type) we have
// no mapping for. A business outcome, not a transport failure.
type UnknownStatusError struct {
	ResourceType string
	Status       string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("no mapping for %s status %q", e.ResourceType, e.Status)
}

// StatusMapper translates the provider's status vocabulary into ours. The
// tables live in mapping.yaml so supporting a new provider status is a data
// change, not a code change.
type StatusMapper struct {
	tables map[string]map[string]string
}

func NewStatusMapper() (*StatusMapper, error) {
	var tables map[string]map[string]string
	if err := yaml.Unmarshal(mappingYAML, &tables); err != nil {
		return nil, fmt.Errorf("status mapping tables: %w", err)
	}
	return &StatusMapper{tables: tables}, nil
}

func (m *StatusMapper) Map(resourceType, providerStatus string) (string, error) {
	table, ok := m.tables[resourceType]
	if !ok {
		return "", &UnknownStatusError{ResourceType: resourceType, Status: providerStatus}
	}
	internal, ok := table[providerStatus]
	if !ok {
		return "", &UnknownStatusError{ResourceType: resourceType, Status: providerStatus}
	}
	return internal, nil
}
