// Package setup implements the interactive first-run wizard that writes the
// repsync configuration file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Prompter provides reusable terminal prompts backed by an io.Reader/Writer
// pair. In production these are os.Stdin and os.Stdout; tests can inject
// buffers for deterministic input.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
	eof     bool
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

// String prompts the user for a text value. If the user presses Enter without
// typing anything, defaultVal is returned. An empty defaultVal means the field
// is required and the prompt repeats until a non-empty value is given.
func (p *Prompter) String(label, defaultVal string) string {
	for {
		if defaultVal != "" {
			_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		} else {
			_, _ = fmt.Fprintf(p.w, "  %s: ", label)
		}

		if !p.scan() {
			return defaultVal
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" {
			if defaultVal != "" {
				return defaultVal
			}
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Optional prompts for a value that may be left empty.
func (p *Prompter) Optional(label string) string {
	_, _ = fmt.Fprintf(p.w, "  %s (optional): ", label)
	if !p.scan() {
		return ""
	}
	return strings.TrimSpace(p.scanner.Text())
}

// Secret prompts for a sensitive value such as a key or password. Input is
// not masked. If optional is true an empty answer is accepted.
func (p *Prompter) Secret(label string, optional bool) string {
	for {
		_, _ = fmt.Fprintf(p.w, "  %s: ", label)

		if !p.scan() {
			return ""
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" && !optional {
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Confirm asks a yes/no question. defaultYes controls what happens when the
// user presses Enter without typing: true means yes, false means no.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	if !p.scan() {
		return defaultYes
	}

	answer := strings.TrimSpace(strings.ToLower(p.scanner.Text()))
	if answer == "" {
		return defaultYes
	}
	return answer == "y" || answer == "yes"
}

// Select presents a numbered list and asks the user to pick one. Returns the
// zero-based index of the chosen option.
func (p *Prompter) Select(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	_, _ = fmt.Fprintf(p.w, "  %s:\n", label)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.w, "    %d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprintf(p.w, "  Choice [1-%d]: ", len(options))

		if !p.scan() {
			return -1, fmt.Errorf("no input")
		}

		val := strings.TrimSpace(p.scanner.Text())
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between 1 and %d)\n", len(options))
			continue
		}
		return n - 1, nil
	}
}

// Duration prompts for a Go duration such as "5m" and repeats until the
// answer parses and lies within [lo, hi].
func (p *Prompter) Duration(label string, defaultVal, lo, hi time.Duration) time.Duration {
	for {
		raw := p.String(label, defaultVal.String())
		d, err := time.ParseDuration(raw)
		if err == nil && d >= lo && d <= hi {
			return d
		}
		_, _ = fmt.Fprintf(p.w, "  (enter a duration between %s and %s, e.g. 5m)\n", lo, hi)
		if !p.more() {
			return defaultVal
		}
	}
}

// Float prompts for a non-negative number.
func (p *Prompter) Float(label string, defaultVal float64) float64 {
	for {
		raw := p.String(label, strconv.FormatFloat(defaultVal, 'f', -1, 64))
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil && f >= 0 {
			return f
		}
		_, _ = fmt.Fprintf(p.w, "  (enter a number of 0 or more)\n")
		if !p.more() {
			return defaultVal
		}
	}
}

// scan reads the next line and remembers when input is exhausted.
func (p *Prompter) scan() bool {
	if !p.scanner.Scan() {
		p.eof = true
		return false
	}
	return true
}

// more reports whether the input can still produce answers.
func (p *Prompter) more() bool {
	return !p.eof
}
