package tools

import (
	"strings"
)

// Doc is the parsed form of a tool's documentation block.
type Doc struct {
	Summary string
	Params  map[string]string
}

// ParseDoc extracts a summary and per-parameter descriptions from text.
//
// Two layouts are understood and may be mixed:
//
//	Add two numbers.
//	:param a: the first operand
//	:param b: the second operand
//
// and
//
//	Add two numbers.
//
//	Args:
//	    a: the first operand
//	    b (int): the second operand
//	Returns:
//	    the sum
//
// The summary is every line before the first parameter or section marker,
// joined with spaces. Indented lines continue the previous parameter.
// Anything unrecognized is ignored; ParseDoc never fails.
func ParseDoc(text string) Doc {
	doc := Doc{Params: map[string]string{}}

	var (
		summary []string
		inArgs  bool
		inOther bool
		current string
	)
	appendParam := func(name, s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if prev := doc.Params[name]; prev != "" {
			s = prev + " " + s
		}
		doc.Params[name] = s
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		indented := len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t')

		switch {
		case line == "":
			current = ""
			continue
		case strings.HasPrefix(line, ":param "):
			name, desc, ok := strings.Cut(strings.TrimPrefix(line, ":param "), ":")
			if !ok {
				continue
			}
			fields := strings.Fields(name)
			if len(fields) == 0 {
				continue
			}
			// ":param int a:" names the type first.
			current = fields[len(fields)-1]
			inArgs, inOther = false, false
			appendParam(current, desc)
			continue
		case strings.HasPrefix(line, ":"):
			current, inArgs, inOther = "", false, true
			continue
		case isSection(line, "Args", "Arguments", "Parameters"):
			inArgs, inOther, current = true, false, ""
			continue
		case isSection(line, "Returns", "Return", "Raises", "Yields", "Example", "Examples", "Note", "Notes"):
			inArgs, inOther, current = false, true, ""
			continue
		}

		switch {
		case inArgs:
			if name, desc, ok := argLine(line); ok && !(indented && current != "" && deeper(raw)) {
				current = name
				appendParam(name, desc)
			} else if current != "" {
				appendParam(current, line)
			}
		case inOther:
		case current != "" && indented:
			appendParam(current, line)
		case len(doc.Params) == 0:
			summary = append(summary, line)
		}
	}

	doc.Summary = strings.Join(summary, " ")
	return doc
}

func isSection(line string, names ...string) bool {
	head, rest, ok := strings.Cut(line, ":")
	if !ok || strings.TrimSpace(rest) != "" {
		return false
	}
	for _, n := range names {
		if head == n {
			return true
		}
	}
	return false
}

// argLine splits "name: text" or "name (type): text".
func argLine(line string) (string, string, bool) {
	head, desc, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	head = strings.TrimSpace(head)
	if i := strings.IndexByte(head, '('); i > 0 {
		head = strings.TrimSpace(head[:i])
	}
	if head == "" || strings.ContainsAny(head, " \t") {
		return "", "", false
	}
	return head, desc, true
}

// deeper reports whether raw is indented past a typical Args entry and so
// continues the previous one.
func deeper(raw string) bool {
	n := len(raw) - len(strings.TrimLeft(raw, " \t"))
	return n > 4
}
