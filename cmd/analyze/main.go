package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"clausewise/internal/client"
	"clausewise/internal/domain"
)

var (
	serverURL string
	token     string
	docType   string
	docName   string
	rawOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Analyze a contract with a clausewise server",
	Long: `Uploads a contract (PDF or plain text) to a clausewise server and prints
progress as the document is summarized. Use "-" to read plain text from stdin.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAnalyze,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", envOr("CLAUSEWISE_URL", "http://localhost:8080"), "server base URL")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("CLAUSEWISE_TOKEN"), "access token; analyses are saved to this account")
	rootCmd.Flags().StringVar(&docType, "type", "", "document type (pdf or text); detected when empty")
	rootCmd.Flags().StringVar(&docName, "name", "", "contract name; defaults to the file name")
	rootCmd.Flags().BoolVar(&rawOutput, "raw", false, "print the NDJSON records as received")
}

func main() {
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := buildSubmission(cmd, args[0])
	if err != nil {
		return err
	}

	c := client.New(serverURL, token, nil)
	final, err := c.Analyze(ctx, sub, func(ev domain.ProgressEvent) { printEvent(cmd, ev) })
	if err != nil {
		var failed *client.AnalysisFailedError
		if errors.As(err, &failed) {
			return errors.New(failed.Message)
		}
		return err
	}
	if rawOutput {
		return nil
	}

	cmd.Println()
	cmd.Println("Summary:")
	cmd.Println(final.Summary)
	cmd.Println()
	data, err := json.MarshalIndent(final.Analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format analysis: %w", err)
	}
	cmd.Println("Analysis:")
	cmd.Println(string(data))
	return nil
}

func buildSubmission(cmd *cobra.Command, path string) (client.Submission, error) {
	sub := client.Submission{Type: domain.DocumentType(docType), Name: docName}

	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return sub, fmt.Errorf("failed to read stdin: %w", err)
		}
		sub.Content = string(data)
		return sub, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sub, fmt.Errorf("failed to read %s: %w", path, err)
	}
	sub.File = data
	sub.Filename = filepath.Base(path)
	if sub.Name == "" {
		sub.Name = sub.Filename
	}
	return sub, nil
}

func printEvent(cmd *cobra.Command, ev domain.ProgressEvent) {
	if rawOutput {
		line, _ := json.Marshal(ev)
		cmd.Println(string(line))
		return
	}
	switch ev.Type {
	case domain.EventStatus:
		cmd.Println("..", ev.Message)
	case domain.EventProgress:
		if ev.Progress != nil {
			cmd.Printf("[%3.0f%%] %s\n", *ev.Progress, ev.Message)
		} else {
			cmd.Println("[    ]", ev.Message)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
