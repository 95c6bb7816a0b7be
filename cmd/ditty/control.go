package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/dittyapp/ditty/internal/httpc"
)

// apiTimeout bounds every control request.
const apiTimeout = 5 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status json.RawMessage
		if err := callAPI(cmd, "GET", "/api/status", &status); err != nil {
			return err
		}
		return printJSON(cmd, status)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Ask a running server to begin capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp json.RawMessage
		if err := callAPI(cmd, "POST", "/api/start", &resp); err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running server to end capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp json.RawMessage
		if err := callAPI(cmd, "POST", "/api/stop", &resp); err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func callAPI(cmd *cobra.Command, method, path string, out any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	api := httpc.NewAPI(cfg.Web.Addr, nil)
	if method == "POST" {
		return api.PostJSON(ctx, path, nil, out)
	}
	return api.GetJSON(ctx, path, out)
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
