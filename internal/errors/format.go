package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// colorEnabled controls whether ANSI colors are used.
var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

// color wraps text in ANSI color codes if colors are enabled.
func color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + colorReset
}

func red(text string) string    { return color(colorRed, text) }
func blue(text string) string   { return color(colorBlue, text) }
func cyan(text string) string   { return color(colorCyan, text) }
func white(text string) string  { return color(colorWhite, text) }
func gray(text string) string   { return color(colorGray, text) }
func bold(text string) string   { return color(colorBold, text) }

// Format returns a multi-line error message for terminal display.
func (e *FlightError) Format() string {
	var b strings.Builder

	// Header line
	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(red(bold("ERROR ")))
		b.WriteString(white(bold(e.Code + ": ")))
		b.WriteString(white(e.Message))
	} else {
		b.WriteString(red(bold("ERROR: ")))
		b.WriteString(white(e.Message))
	}
	b.WriteString("\n\n")

	if e.Source != nil {
		b.WriteString("  ")
		b.WriteString(cyan(e.Source.String()))
		b.WriteString("\n\n")
	}

	if e.Detail != "" {
		b.WriteString("  ")
		b.WriteString(bold(e.Detail))
		b.WriteString("\n\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(gray("cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Help != "" {
		for _, line := range wrapText(e.Help, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Suggestion
	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(cyan("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	// Doc URL
	if e.DocURL != "" {
		b.WriteString("  ")
		b.WriteString(gray("Learn more: "))
		b.WriteString(blue(e.DocURL))
		b.WriteString("\n")
	}

	return b.String()
}

// FormatCompact returns a compact single-line error format.
func (e *FlightError) FormatCompact() string {
	var b strings.Builder

	if e.Source != nil {
		b.WriteString(e.Source.String())
		b.WriteString(": ")
	}

	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}

	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	return b.String()
}

// FormatJSON returns the error as a JSON object.
func (e *FlightError) FormatJSON() string {
	type source struct {
		File  string `json:"file"`
		Entry int    `json:"entry"`
	}
	out := struct {
		Code       string   `json:"code,omitempty"`
		Category   Category `json:"category"`
		Message    string   `json:"message"`
		Detail     string   `json:"detail,omitempty"`
		Source     *source  `json:"source,omitempty"`
		Cause      string   `json:"cause,omitempty"`
		Suggestion string   `json:"suggestion,omitempty"`
		DocURL     string   `json:"docUrl,omitempty"`
	}{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
		DocURL:     e.DocURL,
	}
	if e.Source != nil {
		out.Source = &source{File: e.Source.File, Entry: e.Source.Entry}
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Message)
	}
	return string(data)
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var current strings.Builder

	for _, word := range words {
		if current.Len()+len(word)+1 > width {
			if current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

// Style selects how PrintError renders an error.
type Style int

const (
	StyleFull Style = iota
	StyleCompact
	StyleJSON
)

// ParseStyle parses "full", "compact" or "json".
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(s) {
	case "", "full", "text":
		return StyleFull, nil
	case "compact":
		return StyleCompact, nil
	case "json":
		return StyleJSON, nil
	}
	return StyleFull, fmt.Errorf("unknown error format %q (want full, compact or json)", s)
}

// PrintError writes err to w. Errors that are not FlightErrors are printed
// as a plain message in the chosen style.
func PrintError(w io.Writer, err error, style Style) {
	var fe *FlightError
	if !stderrors.As(err, &fe) {
		switch style {
		case StyleJSON:
			data, _ := json.Marshal(map[string]string{"message": err.Error()})
			fmt.Fprintf(w, "%s\n", data)
		case StyleCompact:
			fmt.Fprintf(w, "%s\n", err.Error())
		default:
			fmt.Fprintf(w, "\n%s %s\n\n", bold(red("ERROR:")), err.Error())
		}
		return
	}
	switch style {
	case StyleJSON:
		fmt.Fprintf(w, "%s\n", fe.FormatJSON())
	case StyleCompact:
		fmt.Fprintf(w, "%s\n", fe.FormatCompact())
	default:
		fmt.Fprint(w, fe.Format())
	}
}
