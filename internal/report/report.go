// Package report renders a session log as a paginated PDF.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/set-night/apexinspect/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

const (
	Title = "Apex Industrial AI - Inspection Report"

	// Placeholder replaces every character the PDF core fonts cannot encode.
	Placeholder = '?'
)

type Generator struct {
	compress bool
}

type Option func(*Generator)

// WithCompression toggles stream compression; it is on by default.
func WithCompression(on bool) Option {
	return func(g *Generator) { g.compress = on }
}

func New(opts ...Option) *Generator {
	g := &Generator{compress: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders messages with the default generator.
func Generate(messages []domain.Message) ([]byte, error) {
	return New().Generate(messages)
}

// Generate lays out the header and one block per message. Text is reduced to
// Latin-1 first, so message content can never make rendering fail.
func (g *Generator) Generate(messages []domain.Message) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(g.compress)
	pdf.SetTitle(Title, false)
	pdf.SetCreator("apexinspect", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	for _, msg := range messages {
		content := Sanitize(msg.Content)

		if msg.Role == domain.RoleUser {
			pdf.SetTextColor(100, 100, 100)
			pdf.CellFormat(0, 10, "OPERATOR: "+flatten(content), "", 1, "", false, 0, "")
		} else {
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(0, 10, "ANALYSIS: "+content, "", "", false)
			pdf.Ln(5)

			if msg.Usage != nil {
				pdf.SetFont("Courier", "", 8)
				pdf.CellFormat(0, 5, fmt.Sprintf("[METRICS: %d Tokens used]", msg.Usage.TotalTokens), "", 1, "", false, 0, "")
				pdf.SetFont("Helvetica", "", 11)
			}
		}
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Sanitize encodes s as Latin-1, substituting Placeholder for anything outside it.
// The result is a byte string in the encoding the core fonts expect.
func Sanitize(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = Placeholder
		}
		out = append(out, b)
	}
	return string(out)
}

// flatten keeps operator entries on a single line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
