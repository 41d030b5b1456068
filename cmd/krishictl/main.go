package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jordanhubbard/krishi/pkg/models"
)

const version = "0.1.0"

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "krishictl",
		Short: "Krishi CLI - interact with a Krishi advisory server",
		Long: `krishictl is a command-line interface for the Krishi crop advisory service.
All output is structured JSON (pipe through jq for further processing).`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", getDefaultServer(), "Krishi server URL")

	// Add subcommands
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newFeedbackCommand())
	rootCmd.AddCommand(newEscalationsCommand())
	rootCmd.AddCommand(newAnalyticsCommand())
	rootCmd.AddCommand(newFarmerCommand())
	rootCmd.AddCommand(newEventsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getDefaultServer() string {
	if server := os.Getenv("KRISHI_SERVER"); server != "" {
		return server
	}
	return "http://localhost:8080"
}

// --- HTTP client ---

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func newClient() *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(serverURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(method, path string, params url.Values, data interface{}) ([]byte, error) {
	u := fmt.Sprintf("%s%s", c.BaseURL, path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		body = strings.NewReader(string(jsonData))
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}

func (c *Client) get(path string, params url.Values) ([]byte, error) {
	return c.do(http.MethodGet, path, params, nil)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	return c.do(http.MethodPost, path, nil, data)
}

// outputJSON pretty-prints JSON data. All commands use this as the primary output path.
func outputJSON(w io.Writer, data []byte) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		// Not valid JSON, print raw
		fmt.Fprintln(w, string(data))
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// --- Query commands ---

func newQueryCommand() *cobra.Command {
	var req models.QueryRequest
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Ask for advice",
		Example: `  krishictl query "my tomato has late blight spots" --crop tomato --farmer f1
  krishictl query --image uploads/leaf.jpg --crop banana --location kerala`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Text = args[0]
			}
			data, err := newClient().post("/api/v1/query", req)
			if err != nil {
				return err
			}
			outputJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.FarmerID, "farmer", "", "Farmer ID")
	cmd.Flags().StringVar(&req.Crop, "crop", "", "Crop name")
	cmd.Flags().StringVar(&req.Location, "location", "", "Location or region")
	cmd.Flags().StringVar(&req.Season, "season", "", "Season (monsoon, post-monsoon, pre-monsoon)")
	cmd.Flags().StringVar(&req.Language, "language", "", "Query language (en, ml, hi)")
	cmd.Flags().StringVar(&req.ImageRef, "image", "", "Reference to an uploaded crop photo")
	cmd.Flags().StringVar(&req.AudioRef, "audio", "", "Reference to an uploaded voice note")
	return cmd
}

func newFeedbackCommand() *cobra.Command {
	var req models.FeedbackRequest
	cmd := &cobra.Command{
		Use:     "feedback <query-id>",
		Short:   "Rate an answer",
		Example: `  krishictl feedback 3f2a... --rating 5 --helpful`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.QueryID = args[0]
			if req.Rating < 1 || req.Rating > 5 {
				return fmt.Errorf("--rating must be between 1 and 5")
			}
			data, err := newClient().post("/api/v1/feedback", req)
			if err != nil {
				return err
			}
			outputJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().IntVar(&req.Rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().BoolVar(&req.Helpful, "helpful", false, "Mark the answer as helpful")
	cmd.Flags().StringVar(&req.Comment, "comment", "", "Free-text comment")
	return cmd
}

// --- Learning commands ---

func newAnalyticsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show aggregate analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/analytics", nil)
			if err != nil {
				return err
			}
			outputJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
}

func newFarmerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "farmer <id>",
		Short: "Show a farmer profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/farmers/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			outputJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
}
