package testutil

import (
	"embed"

	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
)

//go:embed fixtures/*.yaml
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadDefinitionFixture parses a definition fixture.
func LoadDefinitionFixture(name string) (*definition.Definition, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	return definition.Parse(data)
}

// CleanDefinition returns a clean-mode definition referencing
// projects/line-a. Pair it with TestEnv.AddProject("projects/line-a").
func CleanDefinition() (*definition.Definition, error) {
	return LoadDefinitionFixture("clean.yaml")
}

// RestoreDefinition returns a restore-mode definition referencing
// backups/plant.gwbk and tags/plant-tags.json.
func RestoreDefinition() (*definition.Definition, error) {
	return LoadDefinitionFixture("restore.yaml")
}

// InvalidDefinition returns a definition that parses but fails validation.
func InvalidDefinition() (*definition.Definition, error) {
	return LoadDefinitionFixture("invalid.yaml")
}

// MinimalDefinition returns a clean-mode definition with no host references.
func MinimalDefinition(name string) definition.Definition {
	return definition.Definition{Name: name}
}
