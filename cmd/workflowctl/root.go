package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/workflow-engine/internal/application/service"
)

var rootCmd = &cobra.Command{
	Use:   "workflowctl",
	Short: "workflowctl inspects workflow definitions offline",
	Long: `workflowctl reads workflow definitions in the same shape the HTTP API accepts
(YAML or JSON) and checks or visualizes them without a running server.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRequest reads a definition file. JSON is accepted since it is valid YAML.
// Unknown fields are rejected so typos do not silently drop states or actions.
func loadRequest(path string) (*service.CreateDefinitionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var req service.CreateDefinitionRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &req, nil
}
