package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	"trailnotify/internal/config"
	"trailnotify/internal/decoder"
	"trailnotify/internal/rules"
	"trailnotify/internal/types"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "trailctl",
		Short:        "Operator tool for the CloudTrail CIS notifier",
		SilenceUsage: true,
	}
	root.AddCommand(
		newDecodeCmd(),
		newEncodeCmd(),
		newClassifyCmd(),
		newRulesCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

func newDecodeCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "decode [file|-]",
		Short: "Decode a CloudWatch Logs envelope and print its records as JSON lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			data := strings.TrimSpace(string(input))
			if !raw {
				var ev events.CloudwatchLogsEvent
				if err := json.Unmarshal(input, &ev); err != nil {
					return fmt.Errorf("parse envelope: %w", err)
				}
				if ev.AWSLogs.Data == "" {
					return fmt.Errorf("envelope has no awslogs.data")
				}
				data = ev.AWSLogs.Data
			}

			records, err := decoder.Decode(data)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, rec := range records {
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Input is the bare awslogs.data string instead of an envelope")
	return cmd
}

func newEncodeCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "encode [file|-]",
		Short: "Wrap CloudTrail records (a JSON object or array) in a CloudWatch Logs envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			records, err := parseRecords(input)
			if err != nil {
				return err
			}

			data, err := decoder.EncodeRecords(records)
			if err != nil {
				return err
			}
			if raw {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), data)
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(events.CloudwatchLogsEvent{AWSLogs: events.CloudwatchLogsRawData{Data: data}})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the awslogs.data string")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var resourceName string

	cmd := &cobra.Command{
		Use:   "classify [file|-]",
		Short: "Classify CloudTrail records (a JSON object or array) against the rule table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			records, err := parseRecords(input)
			if err != nil {
				return err
			}

			table, err := rules.LoadTable(resourceName)
			if err != nil {
				return err
			}
			classifier := rules.NewClassifier(table)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tOUTCOME\tRULE\tLABEL")
			for i, rec := range records {
				c := classifier.Classify(rec)
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, c.Outcome, dash(c.RuleID), dash(c.AlertLabel()))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&resourceName, "resource-name", os.Getenv("RESOURCE_NAME"),
		"Notifier function and log group name watched by the cis-3.5-notifier rules (default: $RESOURCE_NAME)")
	return cmd
}

func newRulesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rule table in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := rules.LoadTable("")
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(table)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMATCH\tLABEL")
			for _, r := range table {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Match, r.Label)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the table as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := config.NewBuildInfo()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "trailctl %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildTime)
			return err
		},
	}
}

// readInput reads the named file, or stdin when the argument is "-" or
// missing.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", args[0], err)
	}
	return b, nil
}

// parseRecords accepts a single JSON object or an array of objects.
func parseRecords(input []byte) ([]types.Record, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("no input")
	}

	if trimmed[0] == '[' {
		var records []types.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parse records: %w", err)
		}
		for i, r := range records {
			if r == nil {
				return nil, fmt.Errorf("parse records: element %d is not an object", i)
			}
		}
		return records, nil
	}

	var rec types.Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("parse record: input is not an object")
	}
	return []types.Record{rec}, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
