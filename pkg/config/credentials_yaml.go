package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func readCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("config: parse credentials: %w", err)
	}
	return &creds, nil
}
