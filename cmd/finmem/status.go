// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// statusHTTPClient is the HTTP client used by the status command. Exposed as
// a variable so tests can replace it.
var statusHTTPClient = &http.Client{Timeout: 5 * time.Second}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tool server status",
		Long:  "Check the running server's health endpoint and display its status.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:18790", "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	resp, err := statusHTTPClient.Get("http://" + addr + "/health")
	if err != nil {
		_, _ = fmt.Fprintf(out, "Server at %s is not running (%s)\n", addr, err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		_, _ = fmt.Fprintf(out, "Server at %s: unreadable response (%s)\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, body.Status)
	return nil
}
