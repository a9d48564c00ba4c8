package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"genstudio/internal/history/backend"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
)

func main() {
	var (
		keyFlag    string
		forgetFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "Gemini API key (falls back to GEMINI_API_KEY)")
	flag.BoolVar(&forgetFlag, "forget", false, "Remove the stored key instead of saving one")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.HistoryDriver == infra.HistoryDriverMemory {
		fmt.Fprintln(os.Stderr, "HISTORY_DRIVER=memory cannot persist a key")
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = cfg.GeminiAPIKey
	}
	if key == "" && !forgetFlag {
		fmt.Fprintln(os.Stderr, "GEMINI API key is required via -key or environment")
		os.Exit(1)
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "geminikey").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	medium, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open history medium: %v\n", err)
		os.Exit(1)
	}
	defer medium.Close()

	store, err := credentials.NewStore(ctx, medium)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open credentials: %v\n", err)
		os.Exit(1)
	}

	if forgetFlag {
		if err := store.Forget(ctx, credentials.ProviderGemini); err != nil {
			fmt.Fprintf(os.Stderr, "failed to remove gemini api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("GEMINI API key removed")
		return
	}
	if err := store.SetGeminiAPIKey(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist gemini api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("GEMINI API key stored successfully")
}
