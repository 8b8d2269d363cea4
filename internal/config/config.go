package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all process configuration. It is read once at startup and
// passed explicitly to every component; nothing reads the environment
// after LoadConfig returns.
type Config struct {
	// Mail store selection: "imap", "gmail" or "mock".
	MailBackend string

	// IMAP backend.
	IMAPHost     string
	IMAPPort     string
	IMAPUsername string
	IMAPPassword string
	IMAPTLS      bool

	// Gmail backend.
	GmailAccessToken string

	// Default folder path under the mailbox, e.g. "Inbox/2. Policy Update".
	FolderPath string

	// Text generation.
	AIProvider    string
	AIKey         string
	ModelExtract  string
	ModelGenerate string

	// Run behavior.
	OutputDir       string
	DumpPayloadPath string
	UseMockEmails   bool
	SkipGeneration  bool
	DetachGenerate  bool

	// Run ledger sqlite path; empty keeps the ledger in memory only.
	RunLedgerPath string
}

// LoadConfig reads .env (if present) and the environment into a Config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		MailBackend:      GetEnv("MAIL_BACKEND", "imap"),
		IMAPHost:         GetEnv("IMAP_HOST", ""),
		IMAPPort:         GetEnv("IMAP_PORT", "993"),
		IMAPUsername:     GetEnv("IMAP_USERNAME", ""),
		IMAPPassword:     GetEnv("IMAP_PASSWORD", ""),
		IMAPTLS:          boolEnv("IMAP_TLS", true),
		GmailAccessToken: GetEnv("GMAIL_ACCESS_TOKEN", ""),
		FolderPath:       GetEnv("MAIL_FOLDER_PATH", "INBOX"),
		AIProvider:       GetEnv("AI_PROVIDER", "openai"),
		AIKey:            GetEnv("OPENAI_API_KEY", ""),
		ModelExtract:     GetEnv("OPENAI_MODEL_EXTRACT", "gpt-5-mini"),
		ModelGenerate:    GetEnv("OPENAI_MODEL_GENERATE", "gpt-5-mini"),
		OutputDir:        GetEnv("OUTPUT_DIR", "."),
		DumpPayloadPath:  GetEnv("DUMP_PAYLOAD_PATH", ""),
		UseMockEmails:    boolEnv("USE_MOCK_EMAILS", false),
		SkipGeneration:   boolEnv("SKIP_GENERATION", false),
		DetachGenerate:   boolEnv("DETACH_GENERATION", false),
		RunLedgerPath:    GetEnv("RUN_LEDGER_PATH", ""),
	}, nil
}

// GetEnv retrieves an environment variable or returns the default value.
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func boolEnv(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return strings.EqualFold(value, "true")
}

// Validate checks the fields needed to reach the configured mail store.
// The generation key is checked separately because dump-only runs never
// need it.
func (c *Config) Validate() error {
	if c.UseMockEmails {
		return nil
	}
	switch c.MailBackend {
	case "imap":
		if c.IMAPHost == "" {
			return fmt.Errorf("IMAP_HOST is required")
		}
		if c.IMAPUsername == "" {
			return fmt.Errorf("IMAP_USERNAME is required")
		}
		if c.IMAPPassword == "" {
			return fmt.Errorf("IMAP_PASSWORD is required")
		}
	case "gmail":
		if c.GmailAccessToken == "" {
			return fmt.Errorf("GMAIL_ACCESS_TOKEN is required")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown MAIL_BACKEND %q", c.MailBackend)
	}
	return nil
}
