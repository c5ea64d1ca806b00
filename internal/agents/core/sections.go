package core

import (
	"strings"
	"unicode"
)

// SectionKind says how the lines under a section header are collected.
type SectionKind int

const (
	// SectionText joins the header remainder and following lines with newlines.
	SectionText SectionKind = iota
	// SectionSteps collects "N. text" items; unnumbered lines continue the previous step.
	SectionSteps
	// SectionList collects bullet, numbered or bare lines as separate items.
	SectionList
	// SectionFlag reads "yes"/"no" from the header line itself and closes the section.
	SectionFlag
)

// SectionSpec declares one "Header:" section of a model reply.
type SectionSpec struct {
	Header string
	Kind   SectionKind
}

// Sections is the parsed reply, keyed by lower-cased header.
type Sections struct {
	Text  map[string]string
	Lists map[string][]string
	Flags map[string]bool
}

// ParseSections splits a "Header: ..." formatted reply. Header matching is
// case-insensitive and tolerates markdown decoration such as "- " or "**".
// Lines before the first recognised header are ignored.
func ParseSections(content string, specs []SectionSpec) Sections {
	out := Sections{
		Text:  map[string]string{},
		Lists: map[string][]string{},
		Flags: map[string]bool{},
	}

	var current *SectionSpec
	var key string
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if spec, rest, ok := matchHeader(line, specs); ok {
			key = strings.ToLower(spec.Header)
			switch spec.Kind {
			case SectionFlag:
				out.Flags[key] = strings.HasPrefix(strings.ToLower(rest), "yes")
				current = nil
			case SectionText:
				out.Text[key] = rest
				current = spec
			default:
				if rest != "" {
					addItem(&out, spec, key, rest)
				}
				current = spec
			}
			continue
		}

		if current == nil {
			continue
		}
		switch current.Kind {
		case SectionText:
			out.Text[key] += "\n" + line
		default:
			addItem(&out, current, key, line)
		}
	}

	for k, v := range out.Text {
		out.Text[k] = strings.TrimSpace(v)
	}
	return out
}

func addItem(out *Sections, spec *SectionSpec, key, line string) {
	switch spec.Kind {
	case SectionSteps:
		if step, ok := numbered(line); ok {
			out.Lists[key] = append(out.Lists[key], step)
			return
		}
		if items := out.Lists[key]; len(items) > 0 {
			items[len(items)-1] += " " + line
		}
	case SectionList:
		for _, prefix := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(line, prefix) {
				out.Lists[key] = append(out.Lists[key], strings.TrimSpace(line[len(prefix):]))
				return
			}
		}
		if item, ok := numbered(line); ok {
			out.Lists[key] = append(out.Lists[key], item)
			return
		}
		out.Lists[key] = append(out.Lists[key], line)
	}
}

// numbered accepts a line that starts with a digit and contains ". ",
// returning the text after the first ". ".
func numbered(line string) (string, bool) {
	if line == "" || !unicode.IsDigit(rune(line[0])) {
		return "", false
	}
	_, after, ok := strings.Cut(line, ". ")
	if !ok {
		return "", false
	}
	return after, true
}

func matchHeader(line string, specs []SectionSpec) (*SectionSpec, string, bool) {
	norm := strings.TrimLeft(line, "-*#• ")
	lower := strings.ToLower(norm)
	for i := range specs {
		h := strings.ToLower(specs[i].Header) + ":"
		if strings.HasPrefix(lower, h) {
			rest := strings.TrimSpace(norm[len(h):])
			rest = strings.TrimSpace(strings.TrimLeft(rest, "*"))
			return &specs[i], rest, true
		}
		// "**Header**:" style
		h2 := strings.ToLower(specs[i].Header) + "**:"
		if strings.HasPrefix(lower, h2) {
			return &specs[i], strings.TrimSpace(norm[len(h2):]), true
		}
	}
	return nil, "", false
}
