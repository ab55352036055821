// Package logging configures the process-wide structured logger: JSON on
// stdout, level taken from configuration. Attributes keyed like a taxpayer
// identifier are masked before they reach the handler, so a stray log call
// cannot leak one even when the pipeline already holds the masked form.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// identifierKeys are attribute names that may carry a taxpayer identifier.
var identifierKeys = map[string]bool{
	"ssn":                 true,
	"identifier":          true,
	"taxpayer_identifier": true,
}

func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: maskIdentifierAttrs,
	})
	return slog.New(handler).With("service", service)
}

func maskIdentifierAttrs(_ []string, attr slog.Attr) slog.Attr {
	if identifierKeys[attr.Key] {
		attr.Value = slog.StringValue(domain.MaskIdentifier(attr.Value.String()).String())
	}
	return attr
}

func parseLevel(level string) slog.Level {
	text := strings.TrimSpace(level)
	if strings.EqualFold(text, "warning") {
		text = "warn"
	}
	var parsed slog.Level
	if parsed.UnmarshalText([]byte(text)) != nil {
		return slog.LevelInfo
	}
	return parsed
}
