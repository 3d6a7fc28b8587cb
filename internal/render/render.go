// Package render formats console records for the terminal and the web page.
package render

import (
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"contact-chat-lab/internal/model"
)

// Header is the one-line summary shown above each message body.
func Header(m model.Message) string {
	return m.Timestamp() + " · " + m.SenderLabel()
}

// AttachmentLabel names an attachment and, when known, its size.
func AttachmentLabel(a model.Attachment) string {
	name := a.FileName
	if name == "" {
		name = a.FileURL
	}
	if name == "" {
		name = string(a.Raw)
	}
	if a.Size == nil || *a.Size < 0 {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, humanize.Bytes(uint64(*a.Size)))
}

// Expiry shows the raw expiry and, when it parses, how far it is from now.
func Expiry(t model.Token, now time.Time) string {
	if t.ExpiresAt == model.NoExpiry {
		return t.ExpiresAt
	}
	at, err := time.Parse(time.RFC3339Nano, t.ExpiresAt)
	if err != nil {
		return t.ExpiresAt
	}
	return fmt.Sprintf("%s (%s)", t.ExpiresAt, humanize.RelTime(at, now, "ago", "from now"))
}

// TokenLine is the compact one-line form used by the CLI.
func TokenLine(t model.Token, now time.Time) string {
	return fmt.Sprintf("%-36s  %-16s  active=%-7s  expires=%s", t.ID, t.Badge(), t.Active, Expiry(t, now))
}

func Messages(w io.Writer, messages []model.Message) error {
	if len(messages) == 0 {
		_, err := fmt.Fprintln(w, "no messages")
		return err
	}
	for _, m := range messages {
		if _, err := fmt.Fprintln(w, Header(m)); err != nil {
			return err
		}
		for _, a := range m.Attachments {
			if _, err := fmt.Fprintln(w, "  attachment: "+AttachmentLabel(a)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, indentBlock(m.Pretty(), "  ")); err != nil {
			return err
		}
	}
	return nil
}

func Tokens(w io.Writer, tokens []model.Token, now time.Time) error {
	if len(tokens) == 0 {
		_, err := fmt.Fprintln(w, "no tokens")
		return err
	}
	for _, t := range tokens {
		if _, err := fmt.Fprintln(w, TokenLine(t, now)); err != nil {
			return err
		}
	}
	return nil
}

// Log writes bounded-log entries, newest first, one per line.
func Log(w io.Writer, entries []string) error {
	for _, entry := range entries {
		if _, err := fmt.Fprintln(w, entry); err != nil {
			return err
		}
	}
	return nil
}

// FuncMap exposes the helpers to html/template.
func FuncMap(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"header":     Header,
		"attachment": AttachmentLabel,
		"expiry":     func(t model.Token) string { return Expiry(t, now()) },
		"pathEscape": url.PathEscape,
	}
}

func indentBlock(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
