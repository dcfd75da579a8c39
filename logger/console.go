package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const (
	ansiReset = "\033[0m"
	ansiBlue  = "\033[34m"
)

var levelStyle = map[string]struct{ tag, color string }{
	"debug": {"[DBG]", "\033[36m"},
	"info":  {"[INF]", "\033[32m"},
	"warn":  {"[WRN]", "\033[33m"},
	"error": {"[ERR]", "\033[31m"},
	"fatal": {"[FTL]", "\033[35m"},
}

// consoleWriter prefixes each line with a short service tag and a level
// tag, e.g. "[IMP][INF]" for impact-api.
func consoleWriter(out io.Writer, service string, noColor bool) zerolog.ConsoleWriter {
	paint := func(color, s string) string {
		if noColor {
			return s
		}
		return color + s + ansiReset
	}

	prefix := ""
	if len(service) >= 3 {
		prefix = paint(ansiBlue, "["+strings.ToUpper(service[:3])+"]")
	}

	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			lvl := strings.ToLower(fmt.Sprint(i))
			style, ok := levelStyle[lvl]
			if !ok {
				return prefix + "[" + strings.ToUpper(lvl) + "]"
			}
			return prefix + paint(style.color, style.tag)
		},
		FormatFieldName:  func(i interface{}) string { return fmt.Sprint(i) + ":" },
		FormatFieldValue: func(i interface{}) string { return fmt.Sprint(i) },
	}
}
