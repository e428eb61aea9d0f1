// Package builtin provides the research tools the agent ships with.
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"scout/internal/schema"
	"scout/internal/tool"
)

// HandbookNotFound is returned to the model when the handbook file is missing.
const HandbookNotFound = "Handbook not found."

// DefaultMaxSections caps how many matching sections one search returns.
const DefaultMaxSections = 5

// Section is one heading of the handbook with the text up to the next
// heading.
type Section struct {
	Number  string   // hierarchical position, e.g. "3.2"
	Path    []string // heading titles from the top level down
	Content string   // markdown source including the heading line
}

// Title returns the innermost heading.
func (s Section) Title() string {
	if len(s.Path) == 0 {
		return ""
	}
	return s.Path[len(s.Path)-1]
}

// ParseSections splits a markdown document at its headings. Text before the
// first heading becomes a section with an empty number.
func ParseSections(src []byte) []Section {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	type mark struct {
		offset int
		level  int
		title  string
	}
	var marks []mark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		var title bytes.Buffer
		lines := h.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			title.Write(seg.Value(src))
		}
		start := lines.At(0).Start
		for start > 0 && src[start-1] != '\n' {
			start--
		}
		marks = append(marks, mark{offset: start, level: h.Level, title: strings.TrimSpace(title.String())})
	}

	var sections []Section
	if len(marks) == 0 || marks[0].offset > 0 {
		end := len(src)
		if len(marks) > 0 {
			end = marks[0].offset
		}
		if body := strings.TrimSpace(string(src[:end])); body != "" {
			sections = append(sections, Section{Content: body})
		}
	}

	var counters [7]int
	var path [7]string
	for i, m := range marks {
		end := len(src)
		if i+1 < len(marks) {
			end = marks[i+1].offset
		}
		counters[m.level]++
		for l := m.level + 1; l < len(counters); l++ {
			counters[l] = 0
			path[l] = ""
		}
		path[m.level] = m.title

		var num []string
		var titles []string
		for l := 1; l <= m.level; l++ {
			if counters[l] > 0 {
				num = append(num, strconv.Itoa(counters[l]))
			}
			if path[l] != "" {
				titles = append(titles, path[l])
			}
		}
		sections = append(sections, Section{
			Number:  strings.Join(num, "."),
			Path:    titles,
			Content: strings.TrimSpace(string(src[m.offset:end])),
		})
	}
	return sections
}

// SearchHandbookTool answers policy questions from a local markdown
// handbook.
type SearchHandbookTool struct {
	path        string
	maxSections int
}

func NewSearchHandbookTool(path string, maxSections int) *SearchHandbookTool {
	if maxSections <= 0 {
		maxSections = DefaultMaxSections
	}
	return &SearchHandbookTool{path: path, maxSections: maxSections}
}

func (t *SearchHandbookTool) Name() string {
	return "search_handbook"
}

func (t *SearchHandbookTool) Description() string {
	return "Search the AI implementation handbook. Use this when the user asks questions about AI implementation requirements, regulations, or procedures."
}

func (t *SearchHandbookTool) Parameters() *jsonschema.Schema {
	return schema.Object(map[string]*jsonschema.Schema{
		"query": schema.String("The question or keywords to look up in the handbook"),
	}, "query")
}

func (t *SearchHandbookTool) BestPractices() string {
	return `**search_handbook**: cite handbook sections by their number (for example "3.2") in the citation source.`
}

func (t *SearchHandbookTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return tool.Failure(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	src, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &tool.Result{Success: true, Output: HandbookNotFound}, nil
	}
	if err != nil {
		return tool.Failure(fmt.Sprintf("failed to read handbook: %v", err)), nil
	}

	sections := ParseSections(src)
	matches := rankSections(sections, queryTerms(p.Query), t.maxSections)
	if len(matches) == 0 {
		// Nothing matched: hand over the whole document.
		return &tool.Result{
			Success: true,
			Output:  string(src),
			Data:    map[string]any{"sections": len(sections), "matched": 0},
		}, nil
	}

	var b strings.Builder
	for i, s := range matches {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		if s.Number != "" {
			fmt.Fprintf(&b, "[Section %s: %s]\n\n", s.Number, strings.Join(s.Path, " > "))
		}
		b.WriteString(s.Content)
	}
	return &tool.Result{
		Success: true,
		Output:  b.String(),
		Data:    map[string]any{"sections": len(sections), "matched": len(matches)},
	}, nil
}

// queryTerms lowercases the query and drops short words.
func queryTerms(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var terms []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len([]rune(f)) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// rankSections returns up to limit sections mentioning any term, best first
// and in document order among equals.
func rankSections(sections []Section, terms []string, limit int) []Section {
	if len(terms) == 0 {
		return nil
	}
	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, s := range sections {
		body := strings.ToLower(s.Content)
		score := 0
		for _, term := range terms {
			score += strings.Count(body, term)
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].idx < hits[b].idx })

	out := make([]Section, len(hits))
	for i, h := range hits {
		out[i] = sections[h.idx]
	}
	return out
}
