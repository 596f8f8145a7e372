package webfetch

import (
	"os"

	responsetransformer "github.com/always-cache/webfetch/pkg/response-transformer"
	"github.com/always-cache/webfetch/pkg/transport"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file format.
type FileConfig struct {
	CacheCapacity int              `yaml:"cacheCapacity"`
	UserAgent     string           `yaml:"userAgent"`
	MaxRedirects  int              `yaml:"maxRedirects"`
	Transport     transport.Config `yaml:"transport"`
	// History database file. Empty keeps the history in memory.
	History string                    `yaml:"history"`
	Rules   responsetransformer.Rules `yaml:"rules"`
}

func LoadConfig(filename string) (FileConfig, error) {
	var config FileConfig
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
