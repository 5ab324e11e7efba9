// Package export renders the active transcript for download.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/comigor/conner-go/internal/chat"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "txt"
)

// ParseFormat accepts "json", "txt" and "text".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or txt)", s)
}

// Document is the JSON export shape.
type Document struct {
	User        *chat.Account  `json:"user"`
	ChatHistory []chat.Message `json:"chatHistory"`
	ExportedAt  time.Time      `json:"exportedAt"`
}

// localTime matches how the chat renders timestamps.
const localTime = "1/2/2006, 3:04:05 PM"

// JSON returns the indented JSON export. The account password is never exported.
func JSON(acc *chat.Account, history []chat.Message, now time.Time) ([]byte, error) {
	doc := Document{ChatHistory: history, ExportedAt: now.UTC()}
	if doc.ChatHistory == nil {
		doc.ChatHistory = []chat.Message{}
	}
	if acc != nil {
		u := *acc
		u.Password = ""
		doc.User = &u
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Text returns the plain-text export with timestamps rendered in loc.
func Text(acc *chat.Account, history []chat.Message, now time.Time, loc *time.Location) []byte {
	if loc == nil {
		loc = time.Local
	}
	name := "Unknown"
	if acc != nil && acc.Name != "" {
		name = acc.Name
	}

	var b strings.Builder
	b.WriteString("Conner Mental Health Chat Export\n")
	fmt.Fprintf(&b, "User: %s\n", name)
	fmt.Fprintf(&b, "Exported: %s\n\n", now.In(loc).Format(localTime))
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s: %s\n\n", m.Timestamp.In(loc).Format(localTime), strings.ToUpper(string(m.Role)), m.Content)
	}
	return []byte(b.String())
}

// Render produces the export in format f.
func Render(f Format, acc *chat.Account, history []chat.Message, now time.Time, loc *time.Location) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(acc, history, now)
	case FormatText:
		return Text(acc, history, now, loc), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// Filename returns the download name, e.g. conner-chat-2024-05-01.json.
func Filename(kind string, f Format, now time.Time) string {
	return fmt.Sprintf("conner-%s-%s.%s", kind, now.Format("2006-01-02"), f)
}

// ContentType returns the MIME type for f.
func ContentType(f Format) string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
