package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL      string
	organizerToken string
)

func client() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// organizerRequest issues a POST against one of the round control endpoints,
// attaching the organizer secret as a header.
func organizerRequest(path string) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodPost, serverURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Organizer-Secret", organizerToken)

	resp, err := client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func fetchStatus() (map[string]any, error) {
	u, err := url.Parse(serverURL + "/round")
	if err != nil {
		return nil, err
	}
	resp, err := client().Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func printResult(out map[string]any, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(enc))
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "marketctl",
		Short: "Control a running tradefloor server's round lifecycle",
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8000", "Base URL of the tradefloor server")
	rootCmd.PersistentFlags().StringVarP(&organizerToken, "secret", "k", os.Getenv("ORGANIZER_SECRET"), "Organizer secret (or use ORGANIZER_SECRET envvar)")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start (or re-arm) the trading round",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := organizerRequest("/round/start")
			printResult(out, err)
			return nil
		},
	}
	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause the running round, freezing its remaining time",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := organizerRequest("/round/pause")
			printResult(out, err)
			return nil
		},
	}
	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused round",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := organizerRequest("/round/resume")
			printResult(out, err)
			return nil
		},
	}
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the round to idle, closing trading",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := organizerRequest("/round/reset")
			printResult(out, err)
			return nil
		},
	}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current round status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := fetchStatus()
			printResult(out, err)
			return nil
		},
	}

	rootCmd.AddCommand(startCmd, pauseCmd, resumeCmd, resetCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
