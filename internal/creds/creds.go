// Package creds loads the connection details the karma binaries dial
// the machine with.
package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// RobotCredentials holds the connection details for a Viam robot.
type RobotCredentials struct {
	Address  string `json:"address"`
	EntityID string `json:"entity_id"`
	APIKey   string `json:"api_key"`
}

// Validate reports the first missing field.
func (c RobotCredentials) Validate() error {
	switch {
	case c.Address == "":
		return errors.New("credentials: address is empty")
	case c.EntityID == "":
		return errors.New("credentials: entity_id is empty")
	case c.APIKey == "":
		return errors.New("credentials: api_key is empty")
	}
	return nil
}

// Load reads, parses and validates robot credentials from a JSON file.
func Load(path string) (*RobotCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	var c RobotCredentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
