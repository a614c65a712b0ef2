package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DevRickLin/chatguard/internal/client"
	"github.com/DevRickLin/chatguard/internal/conf"
)

var (
	apiURL  string
	output  string = "text" // "text" or "json"
	timeout        = 10 * time.Second
)

var rootCmd = &cobra.Command{
	Use:   "chatguard",
	Short: "chatguard - message-event protection engine for Feishu",
	Long: `chatguard watches chat events and applies protection features such as
antidelete, antispam, antibug, antilink and view-once capture.

Run "chatguard serve" to start the engine. The remaining commands talk to a
running engine through its control API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load() // .env is optional
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Control API URL (defaults to CHATGUARD_API_URL or the configured api.url)")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(eventCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newClient prefers --api over the configured API URL
func newClient() *client.Client {
	url := apiURL
	if url == "" {
		url = conf.LoadFromEnv().API.URL
	}
	return client.New(url, timeout, nil)
}

// printJSON prints v when --output json was requested and reports whether it did
func printJSON(v interface{}) bool {
	if output != "json" {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return true
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
