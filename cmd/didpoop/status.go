// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check a running didpoop server",
		Long:  `Query the /status endpoint of a running server and print the result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(addr + "/status")
			if err != nil {
				return oops.Code("STATUS_UNREACHABLE").With("addr", addr).Wrap(err)
			}
			defer func() { _ = resp.Body.Close() }()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return oops.Code("STATUS_READ_FAILED").Wrap(err)
			}
			if resp.StatusCode != http.StatusOK {
				return oops.Code("STATUS_UNHEALTHY").
					With("status_code", resp.StatusCode).
					Errorf("server reported %d: %s", resp.StatusCode, body)
			}

			var status struct {
				Version string `json:"version"`
				OK      string `json:"ok"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return oops.Code("STATUS_DECODE_FAILED").Wrap(err)
			}

			cmd.Printf("Server %s: %s (version %s)\n", addr, status.OK, status.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:3030", "base URL of the server")

	return cmd
}
