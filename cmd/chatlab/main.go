package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"contact-chat-lab/internal/chatapi"
	"contact-chat-lab/internal/config"
	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/model"
)

var (
	profilePath string
	locationID  string
	contactID   string
	authToken   string
	promptToken bool
)

var rootCmd = &cobra.Command{
	Use:           "chatlab",
	Short:         "Manual test harness for the location-contact chat API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&profilePath, "profile", "", "YAML profile presetting ids, filters and attachments (env CHATLAB_PROFILE)")
	flags.StringVar(&locationID, "location", "", "location ID (env LOCATION_ID)")
	flags.StringVar(&contactID, "contact", "", "contact ID (env CONTACT_ID)")
	flags.StringVar(&authToken, "token", "", "bearer token (env AUTH_TOKEN)")
	flags.BoolVar(&promptToken, "prompt-token", false, "read the bearer token from the terminal without echo")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
}

// newConsole builds a console from config, then the profile, then flags;
// later sources win.
func newConsole(cfg config.Config, metrics *console.Metrics) (*console.Console, error) {
	session := console.Session{
		LocationID: cfg.LocationID,
		ContactID:  cfg.ContactID,
		AuthToken:  cfg.AuthToken,
	}
	opts := console.Options{
		API: chatapi.New(chatapi.Config{
			BaseURL: cfg.APIBaseURL,
			Timeout: cfg.RequestTimeout,
		}),
		DiscardStale: cfg.DiscardStale,
		Metrics:      metrics,
	}

	path := profilePath
	if path == "" {
		path = cfg.Profile
	}
	var expiresAt string
	if path != "" {
		profile, err := config.LoadProfile(path)
		if err != nil {
			return nil, err
		}
		if err := applyProfile(&opts, &session, profile); err != nil {
			return nil, fmt.Errorf("profile %s: %w", path, err)
		}
		expiresAt = profile.ExpiresAt
		slog.Debug("profile loaded", "path", path)
	}

	if locationID != "" {
		session.LocationID = locationID
	}
	if contactID != "" {
		session.ContactID = contactID
	}
	if authToken != "" {
		session.AuthToken = authToken
	}
	if promptToken {
		tok, err := readToken()
		if err != nil {
			return nil, err
		}
		session.AuthToken = tok
	}

	opts.Session = session
	c := console.New(opts)
	if expiresAt != "" {
		c.SetTokenExpiry(expiresAt)
	}
	return c, nil
}

func applyProfile(opts *console.Options, session *console.Session, p config.Profile) error {
	if p.LocationID != "" {
		session.LocationID = p.LocationID
	}
	if p.ContactID != "" {
		session.ContactID = p.ContactID
	}

	filters := console.DefaultFilters()
	if p.Filters.Limit != nil {
		filters.Limit = *p.Filters.Limit
	}
	if p.Filters.Offset != nil {
		filters.Offset = *p.Filters.Offset
	}
	var err error
	if filters.Direction, err = model.ParseDirection(p.Filters.Direction); err != nil {
		return err
	}
	if filters.UnreadBy, err = model.ParseDirection(p.Filters.UnreadBy); err != nil {
		return err
	}
	filters.StartTime = p.Filters.StartTime
	filters.EndTime = p.Filters.EndTime
	opts.Filters = &filters
	opts.Attachments = p.Attachments
	return nil
}

func readToken() (string, error) {
	fmt.Fprint(os.Stderr, "Bearer token: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
