package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilbumi/satin/internal/api"
	"github.com/ilbumi/satin/internal/di/providers"
)

var openapiFormat string

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the OpenAPI document of the HTTP API",
	RunE:  runOpenAPI,
}

func init() {
	openapiCmd.Flags().StringVar(&openapiFormat, "format", "json", "Output format: json or yaml")
}

func runOpenAPI(cmd *cobra.Command, args []string) error {
	// Route registration only needs the handler methods, not live services.
	server := api.NewServer(&api.Services{}, api.Options{Version: providers.Version})
	spec := server.API().OpenAPI()

	var (
		out []byte
		err error
	)
	switch openapiFormat {
	case "json":
		out, err = json.MarshalIndent(spec, "", "  ")
	case "yaml":
		out, err = spec.YAML()
	default:
		return fmt.Errorf("unknown format %q, expected json or yaml", openapiFormat)
	}
	if err != nil {
		return fmt.Errorf("render openapi: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
