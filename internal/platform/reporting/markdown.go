package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// FormulaCheck is one row of a validation report.
type FormulaCheck struct {
	Name        string `json:"name"`
	Formula     string `json:"formula"`
	Outcome     string `json:"outcome"`
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ValidationMarkdown renders the checks as a Markdown document with a summary
// line and one table row per formula.
func ValidationMarkdown(title string, generatedAt time.Time, checks []FormulaCheck) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeCell(title))
	fmt.Fprintf(&b, "Generated %s. %d of %d formulas are valid.\n\n",
		generatedAt.UTC().Format(time.RFC3339), countValid(checks), len(checks))

	if len(checks) == 0 {
		return b.String()
	}
	b.WriteString("| Name | Formula | Outcome | Details |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, c := range checks {
		details := c.Description
		if c.Message != "" {
			details = c.Message
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n",
			escapeCell(c.Name), escapeCode(c.Formula), escapeCell(c.Outcome), escapeCell(details))
	}
	return b.String()
}

// RenderHTML converts Markdown to HTML. Raw HTML in the source is not passed
// through.
func RenderHTML(w io.Writer, source string) error {
	if err := markdown.Convert([]byte(source), w); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return nil
}

// ValidationHTML is ValidationMarkdown followed by RenderHTML.
func ValidationHTML(title string, generatedAt time.Time, checks []FormulaCheck) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, ValidationMarkdown(title, generatedAt, checks)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func countValid(checks []FormulaCheck) int {
	n := 0
	for _, c := range checks {
		if c.Outcome == "VALID" {
			n++
		}
	}
	return n
}

var cellEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`",
	"<", "&lt;", ">", "&gt;", "[", `\[`, "]", `\]`, "\n", " ",
)

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

// Backslash escapes are literal inside code spans, only the table pipe needs
// escaping there.
func escapeCode(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
