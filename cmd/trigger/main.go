// Command trigger is an operator CLI for the operational HTTP surface
// (§6): it posts to a running apiserver's manual-trigger and cancel
// endpoints instead of requiring curl one-liners.
package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	jobID      string
)

func main() {
	root := &cobra.Command{
		Use:   "trigger",
		Short: "Manually trigger or cancel product-pipeline scheduled jobs",
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "apiserver base URL")

	root.AddCommand(runCommand())
	root.AddCommand(cancelCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <schedule-slug>",
		Short: "Run a schedule's workload synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			client := resty.New()

			body := map[string]string{}
			if jobID != "" {
				body["job_id"] = jobID
			}

			resp, err := client.R().
				SetBody(body).
				Post(fmt.Sprintf("%s/trigger/%s", serverAddr, slug))
			if err != nil {
				return fmt.Errorf("calling apiserver: %w", err)
			}
			fmt.Printf("%d %s\n", resp.StatusCode(), resp.String())
			if resp.IsError() {
				return fmt.Errorf("trigger failed with status %d", resp.StatusCode())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "reuse an existing job id instead of generating one")
	return cmd
}

func cancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cooperative cancellation of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := resty.New()
			resp, err := client.R().
				Post(fmt.Sprintf("%s/jobs/%s/cancel", serverAddr, args[0]))
			if err != nil {
				return fmt.Errorf("calling apiserver: %w", err)
			}
			fmt.Printf("%d %s\n", resp.StatusCode(), resp.String())
			if resp.IsError() {
				return fmt.Errorf("cancel failed with status %d", resp.StatusCode())
			}
			return nil
		},
	}
}
