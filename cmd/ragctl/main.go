package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	serverURL string
	groupID   string
	timeout   int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ragctl",
	Short:   "Client for the campus-rag backend",
	Version: version,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question grounded in a group's uploaded files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "backend base URL")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 60, "request timeout in seconds")
	askCmd.Flags().StringVarP(&groupID, "group", "g", "", "group id to query (required)")
	_ = askCmd.MarkFlagRequired("group")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
}

type chatRequest struct {
	GroupID string `json:"group_id"`
	Query   string `json:"query"`
}

type chatResponse struct {
	Answer   string `json:"answer"`
	Contexts []struct {
		ChunkID string  `json:"chunk_id"`
		Score   float32 `json:"score"`
		Text    string  `json:"text"`
	} `json:"contexts"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	payload, err := json.Marshal(chatRequest{GroupID: groupID, Query: question})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	client := &http.Client{Timeout: time.Duration(timeout) * time.Second}
	resp, err := client.Post(strings.TrimRight(serverURL, "/")+"/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Println(result.Answer)
	if len(result.Contexts) > 0 {
		fmt.Printf("\nSources (%d):\n", len(result.Contexts))
		for i, c := range result.Contexts {
			fmt.Printf("  %d. %s (distance %.4f)\n     %s\n", i+1, c.ChunkID, c.Score, c.Text)
		}
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: time.Duration(timeout) * time.Second}
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/")
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	fmt.Println("ok")
	return nil
}
