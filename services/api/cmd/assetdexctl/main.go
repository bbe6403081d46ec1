package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var apiBaseURL string

	cmd := &cobra.Command{
		Use:           "assetdexctl",
		Short:         "Utility for driving the assetdex API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&apiBaseURL, "api", envOr("ASSETDEX_API", "http://localhost:8080"), "Base URL of the assetdex API")

	cmd.AddCommand(newActivityCommand(&apiBaseURL))
	cmd.AddCommand(newCacheCommand(&apiBaseURL))
	cmd.AddCommand(newJobsCommand(&apiBaseURL))
	return cmd
}

func newActivityCommand(api *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Asset activity operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newActivityRefreshCommand(api))
	cmd.AddCommand(newActivitySummaryCommand(api))
	cmd.AddCommand(newActivityAssetCommand(api))
	cmd.AddCommand(newActivityUserCommand(api))
	return cmd
}

func newActivityRefreshCommand(api *string) *cobra.Command {
	var (
		days       int
		assetTypes []string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the activity window from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(assetTypes) == 0 {
				assetTypes = []string{"all"}
			}
			body := map[string]any{"days": days, "assetTypes": assetTypes}
			return call(cmd.Context(), http.MethodPost, *api+"/v1/activity/refresh", body)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Lookback window in days")
	cmd.Flags().StringSliceVar(&assetTypes, "types", nil, "Asset types to refresh (default all)")
	return cmd
}

func newActivitySummaryCommand(api *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the aggregated activity summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd.Context(), http.MethodGet, *api+"/v1/activity/summary", nil)
		},
	}
}

func newActivityAssetCommand(api *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset <type> <id>",
		Short: "Print activity for a single asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/v1/activity/assets/%s/%s", *api, args[0], args[1])
			return call(cmd.Context(), http.MethodGet, url, nil)
		},
	}
	return cmd
}

func newActivityUserCommand(api *string) *cobra.Command {
	return &cobra.Command{
		Use:   "user <name>",
		Short: "Print activity for a single user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd.Context(), http.MethodGet, *api+"/v1/activity/users/"+args[0], nil)
		},
	}
}

func newCacheCommand(api *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Master cache operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCacheShowCommand(api))
	cmd.AddCommand(newCacheRebuildCommand(api))
	return cmd
}

func newCacheShowCommand(api *string) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the master cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := *api + "/v1/cache/master"
			if status != "" {
				url += "?status=" + status
			}
			return call(cmd.Context(), http.MethodGet, url, nil)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active or archived)")
	return cmd
}

func newCacheRebuildCommand(api *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the master cache from the asset inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd.Context(), http.MethodPost, *api+"/v1/cache/rebuild", nil)
		},
	}
}

func newJobsCommand(api *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Job index operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the in-memory job index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd.Context(), http.MethodGet, *api+"/v1/jobs/index", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "persist",
		Short: "Flush the in-memory job index to durable storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd.Context(), http.MethodPost, *api+"/v1/jobs/index/persist", nil)
		},
	})
	return cmd
}

func call(ctx context.Context, method, url string, body any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(payload)))
	}

	if len(payload) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, payload, "", "  "); err == nil {
			payload = pretty.Bytes()
		}
		fmt.Println(strings.TrimSpace(string(payload)))
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
