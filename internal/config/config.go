package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YKarmar/JobMail/internal/logger"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
	ProviderMCP   = "mcp"
)

// DefaultGmailQuery selects likely job mail by subject.
const DefaultGmailQuery = `subject:(application OR applied OR interview OR offer OR rejected OR ` +
	`"thank you for applying" OR "we received your application" OR ` +
	`"application status" OR "job application")`

// DefaultIMAPQuery is a |-separated list of subject keywords.
const DefaultIMAPQuery = "application|applied|interview|offer|rejected"

type Config struct {
	Mail struct {
		Provider string `yaml:"provider"`
	} `yaml:"mail"`
	Gmail struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURI  string `yaml:"redirect_uri"`
	} `yaml:"gmail"`
	IMAP struct {
		Host     string   `yaml:"host"`
		Email    string   `yaml:"email"`
		Password string   `yaml:"password"`
		UseTLS   bool     `yaml:"use_tls"`
		Provider string   `yaml:"provider"`
		Folders  []string `yaml:"folders"`
	} `yaml:"imap"`
	MCP struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"mcp"`
	Database struct {
		Driver string `yaml:"driver"` // sqlite or postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Server struct {
		Addr        string `yaml:"addr"`
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"server"`
	Sync struct {
		Query      string `yaml:"query"`
		MaxResults int    `yaml:"max_results"`
		Workers    int    `yaml:"workers"`
		Since      string `yaml:"since"` // YYYY-MM-DD or RFC3339
	} `yaml:"sync"`
	Log    logger.Config `yaml:"log"`
	Export struct {
		File string `yaml:"file"`
	} `yaml:"export"`
}

// Load reads a YAML config file, substituting ${VAR} references from the
// environment (a local .env file is honoured), and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	content := expandEnvVars(string(b))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Mail.Provider = strings.ToLower(strings.TrimSpace(c.Mail.Provider))
	if c.Mail.Provider == "" {
		c.Mail.Provider = ProviderGmail
	}

	if c.Gmail.RedirectURI == "" {
		c.Gmail.RedirectURI = "http://localhost:8000/auth/callback"
	}

	if c.IMAP.Email != "" {
		if c.IMAP.Provider == "" {
			c.IMAP.Provider = inferEmailProvider(c.IMAP.Email)
		}
		if c.IMAP.Host == "" {
			c.IMAP.Host = inferIMAPHost(c.IMAP.Email)
			if c.IMAP.Host != "" {
				c.IMAP.UseTLS = true
			}
		}
		if len(c.IMAP.Folders) == 0 {
			c.IMAP.Folders = getDefaultFolders(c.IMAP.Provider)
		}
	}

	if c.MCP.Endpoint == "" && c.Mail.Provider == ProviderMCP {
		c.MCP.Endpoint = "http://localhost:8080/mcp"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "job_tracker.db"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = "http://localhost:5173"
	}

	if c.Sync.Query == "" {
		if c.Mail.Provider == ProviderGmail {
			c.Sync.Query = DefaultGmailQuery
		} else {
			c.Sync.Query = DefaultIMAPQuery
		}
	}
	if c.Sync.MaxResults <= 0 {
		c.Sync.MaxResults = 50
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 4
	}

	if c.Export.File == "" {
		c.Export.File = "job_applications.csv"
	}
}

func (c *Config) Validate() error {
	switch c.Mail.Provider {
	case ProviderGmail, ProviderMCP:
	case ProviderIMAP:
		if c.IMAP.Email == "" {
			return fmt.Errorf("imap.email is required for the imap provider")
		}
		if c.IMAP.Host == "" {
			return fmt.Errorf("imap.host could not be inferred from %s, set it explicitly", c.IMAP.Email)
		}
	default:
		return fmt.Errorf("unknown mail.provider %q", c.Mail.Provider)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	return nil
}

// SinceDate is the lower bound for mailbox searches; zero means unbounded.
func (c *Config) SinceDate() time.Time {
	return ParseDateLoose(c.Sync.Since, time.Time{})
}

// expandEnvVars replaces ${VAR_NAME}; unknown variables are left as is.
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match
	})
}

func inferEmailProvider(email string) string {
	email = strings.ToLower(email)

	if strings.Contains(email, "@gmail.com") || strings.Contains(email, "@googlemail.com") {
		return "gmail"
	}
	if strings.Contains(email, "@outlook.com") || strings.Contains(email, "@hotmail.com") || strings.Contains(email, "@live.com") {
		return "outlook"
	}
	if strings.Contains(email, "@yahoo.com") || strings.Contains(email, "@yahoo.co.") {
		return "yahoo"
	}

	return "custom"
}

func inferIMAPHost(email string) string {
	switch inferEmailProvider(email) {
	case "gmail":
		return "imap.gmail.com:993"
	case "outlook":
		return "outlook.office365.com:993"
	case "yahoo":
		return "imap.mail.yahoo.com:993"
	default:
		return ""
	}
}

func getDefaultFolders(provider string) []string {
	switch provider {
	case "gmail":
		return []string{"INBOX", "[Gmail]/All Mail"}
	case "outlook", "yahoo":
		return []string{"INBOX"}
	default:
		return []string{"INBOX"}
	}
}

func ParseDateLoose(s string, def time.Time) time.Time {
	if s == "" {
		return def
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return def
}
