// Package protocol is the static catalog of analysis protocols: one system
// prompt per mode plus a fixed guardrail appended to every prompt.
package protocol

import (
	"embed"
	"strings"
)

//go:embed prompts/*.txt
var promptFS embed.FS

type Mode string

const (
	General Mode = "General Analysis"
	Defect  Mode = "Defect Inspection"
	Safety  Mode = "Safety Audit"

	Default = General
)

// FocusHeader introduces operator-supplied instructions in a composed prompt.
const FocusHeader = "ADDITIONAL OPERATOR INSTRUCTIONS:"

var (
	modes     = []Mode{General, Defect, Safety}
	prompts   = map[Mode]string{}
	guardrail string
)

func init() {
	files := map[Mode]string{
		General: "prompts/general.txt",
		Defect:  "prompts/defect.txt",
		Safety:  "prompts/safety.txt",
	}
	for mode, name := range files {
		prompts[mode] = mustRead(name)
	}
	guardrail = mustRead("prompts/guardrail.txt")
}

func mustRead(name string) string {
	b, err := promptFS.ReadFile(name)
	if err != nil {
		panic("protocol: missing embedded prompt " + name)
	}
	return strings.TrimSpace(string(b))
}

// Modes returns the catalog entries in display order.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

// Valid reports whether m is a catalog entry.
func Valid(m Mode) bool {
	_, ok := prompts[m]
	return ok
}

// Resolve returns m when it is known and Default otherwise.
func Resolve(m Mode) Mode {
	if Valid(m) {
		return m
	}
	return Default
}

func Prompt(m Mode) (string, bool) {
	p, ok := prompts[m]
	return p, ok
}

// Guardrail returns the mode-independent subject-matter guardrail.
func Guardrail() string {
	return guardrail
}

// Compose assembles the system prompt for a request: mode prompt, guardrail,
// then the operator focus when one is set.
func Compose(m Mode, focus string) string {
	base := prompts[Resolve(m)]

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n")
	sb.WriteString(guardrail)

	if focus = strings.TrimSpace(focus); focus != "" {
		sb.WriteString("\n\n")
		sb.WriteString(FocusHeader)
		sb.WriteString("\n")
		sb.WriteString(focus)
	}
	return sb.String()
}

// Short returns a compact label used on buttons.
func (m Mode) Short() string {
	switch m {
	case General:
		return "General"
	case Defect:
		return "Defect"
	case Safety:
		return "Safety"
	}
	return string(m)
}
