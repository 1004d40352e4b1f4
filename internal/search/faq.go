package search

import (
	"bufio"
	"io"
	"strings"
)

// ParseFAQ reads a Markdown FAQ. Each "##" (or deeper) heading starts an
// entry whose question is the heading text; the lines that follow, up to
// the next heading, form the answer. Table rows are flattened into plain
// sentences and separator rows are dropped. Text before the first heading
// is ignored.
func ParseFAQ(r io.Reader) ([]Entry, error) {
	var (
		out    []Entry
		cur    *Entry
		answer []string
	)
	flush := func() {
		if cur != nil {
			cur.Answer = strings.Join(answer, " ")
			if cur.Answer != "" {
				out = append(out, *cur)
			}
		}
		cur, answer = nil, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "##") {
			flush()
			cur = &Entry{Question: strings.TrimSpace(strings.TrimLeft(line, "#"))}
			continue
		}
		if cur == nil || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			if row := tableRow(line); row != "" {
				answer = append(answer, row)
			}
			continue
		}
		if text := strings.TrimSpace(strings.TrimLeft(line, "-*")); text != "" {
			answer = append(answer, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

// tableRow joins the non-empty cells of "| a | b |"; separator rows
// ("|---|:--:|") yield "".
func tableRow(line string) string {
	cols := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(cols))
	sep := true
	for _, c := range cols {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":-") != "" {
			sep = false
		}
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	if sep || len(cells) == 0 {
		return ""
	}
	return strings.Join(cells, " ") + "."
}
