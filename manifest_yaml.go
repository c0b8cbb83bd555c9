package orchd

import "gopkg.in/yaml.v3"

// manifestYAML mirrors AgentManifest's field set with yaml tags, since
// AgentManifest itself stays tag-free (it's a plain data struct shared
// by every store driver, not a file format).
type manifestYAML struct {
	AgentID          string         `yaml:"agent_id"`
	Version          string         `yaml:"version"`
	Name             string         `yaml:"name"`
	Description      string         `yaml:"description"`
	InputsSchema     map[string]any `yaml:"inputs_schema"`
	SubscribedEvents []string       `yaml:"subscribed_events"`
	EmittedEvents    []string       `yaml:"emitted_events"`
	Permissions      Permissions    `yaml:"permissions"`
	Tools            []string       `yaml:"tools"`
	Status           string         `yaml:"status"`
}

// DecodeManifestYAML parses a YAML-encoded manifest, the format static
// manifest fixtures are authored in. Status defaults to "active" when
// omitted, since a fixture describing an agent to install almost always
// means an active one.
func DecodeManifestYAML(data []byte) (AgentManifest, error) {
	var raw manifestYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return AgentManifest{}, err
	}

	status := ManifestStatus(raw.Status)
	if status == "" {
		status = ManifestActive
	}

	return AgentManifest{
		AgentID:          raw.AgentID,
		Version:          raw.Version,
		Name:             raw.Name,
		Description:      raw.Description,
		InputsSchema:     JSONMap(raw.InputsSchema),
		SubscribedEvents: raw.SubscribedEvents,
		EmittedEvents:    raw.EmittedEvents,
		Permissions:      raw.Permissions,
		Tools:            raw.Tools,
		Status:           status,
	}, nil
}
