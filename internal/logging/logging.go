// Package logging configures the process-wide apex/log handler.
package logging

import (
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/logfmt"
	"github.com/apex/log/handlers/text"
	"github.com/pkg/errors"
)

// Log formats accepted by Setup.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatCLI     = "cli"
	FormatLogfmt  = "logfmt"
	FormatDiscard = "discard"
)

// NewHandler returns the handler for format writing to w.
func NewHandler(format string, w io.Writer) (log.Handler, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return text.New(w), nil
	case FormatJSON:
		return json.New(w), nil
	case FormatCLI:
		return cli.New(w), nil
	case FormatLogfmt:
		return logfmt.New(w), nil
	case FormatDiscard:
		return discard.New(), nil
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
}

// Setup installs the handler for format and sets the level.
func Setup(level, format string, w io.Writer) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}

	handler, err := NewHandler(format, w)
	if err != nil {
		return err
	}

	log.SetHandler(handler)
	log.SetLevel(lvl)
	return nil
}
