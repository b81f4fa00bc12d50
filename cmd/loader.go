package cmd

import (
	_ "embed" // Required for go:embed
	"fmt"

	"github.com/biohack5079/cnc/signalingservice/config"
	"gopkg.in/yaml.v3"
)

//go:embed signalingservice/config.yaml
var configFile []byte

// Load parses the embedded configuration file for the service.
func Load() (*config.AppConfig, error) {
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	return config.NewConfigFromYaml(&yamlCfg)
}
