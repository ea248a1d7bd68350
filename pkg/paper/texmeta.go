package paper

import (
	"os"
	"regexp"
	"strings"
	"unicode"
)

var (
	// titlePattern captures the \title argument, tolerating an optional
	// short-title bracket and one level of nested braces.
	titlePattern = regexp.MustCompile(`\\title\s*(?:\[[^\]]*\])?\s*\{((?:[^{}]|\{[^{}]*\})*)\}`)

	// texCommand matches a control sequence and an optional bracket
	// argument, e.g. \section or \cite[p.~3]. Brace arguments stay in the
	// text so their prose content is counted.
	texCommand = regexp.MustCompile(`\\[a-zA-Z@]+\*?\s*(?:\[[^\]]*\])?`)

	// texEnv matches \begin and \end with their environment name, which is
	// markup rather than prose.
	texEnv = regexp.MustCompile(`\\(?:begin|end)\s*\{[^}]*\}`)
)

// ExtractTitle returns the argument of the first \title command in the file,
// with any nested markup stripped. Empty when the file is unreadable or
// carries no title.
func ExtractTitle(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	m := titlePattern.FindSubmatch(data)
	if m == nil {
		return ""
	}
	title := texCommand.ReplaceAllString(string(m[1]), " ")
	title = strings.NewReplacer("{", "", "}", "", "~", " ").Replace(title)
	return strings.Join(strings.Fields(title), " ")
}

// CountWords counts prose words in a typeset source file. Comments, control
// sequences, math and the preamble are excluded; only tokens containing at
// least one letter count. Returns zero when the file is unreadable.
func CountWords(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return countProseWords(string(data))
}

func countProseWords(source string) int {
	if idx := strings.Index(source, `\begin{document}`); idx >= 0 {
		source = source[idx:]
	}

	var prose strings.Builder
	for _, line := range strings.Split(source, "\n") {
		prose.WriteString(stripComment(line))
		prose.WriteByte('\n')
	}

	text := stripInlineMath(prose.String())
	text = texEnv.ReplaceAllString(text, " ")
	text = texCommand.ReplaceAllString(text, " ")
	text = strings.NewReplacer("{", " ", "}", " ", "~", " ", "$", " ").Replace(text)

	count := 0
	for _, tok := range strings.Fields(text) {
		if strings.ContainsFunc(tok, unicode.IsLetter) {
			count++
		}
	}
	return count
}

// stripComment drops everything from an unescaped % to end of line.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != '%' {
			continue
		}
		if i > 0 && line[i-1] == '\\' {
			continue
		}
		return line[:i]
	}
	return line
}

// stripInlineMath removes $...$ and $$...$$ spans so formulas do not inflate
// the count.
func stripInlineMath(text string) string {
	var out strings.Builder
	inMath := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '$' && (i == 0 || text[i-1] != '\\') {
			if i+1 < len(text) && text[i+1] == '$' {
				i++
			}
			inMath = !inMath
			out.WriteByte(' ')
			continue
		}
		if !inMath {
			out.WriteByte(c)
		}
	}
	return out.String()
}
