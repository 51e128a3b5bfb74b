package sqlquery

import (
	"fmt"
	"strings"
)

// Statement is a small clause-object model for the SELECT queries this engine
// manipulates. Correction rules rewrite Statements instead of doing string
// substitution on raw SQL, so they survive formatting variance in drafts.
type Statement struct {
	Select  []string
	From    string
	Where   []string
	GroupBy []string
	OrderBy string
	Limit   int
}

// ErrNotSelect reports a draft that is not a single SELECT statement.
var ErrNotSelect = fmt.Errorf("not a SELECT statement")

// Parse performs a best-effort decomposition of a candidate SELECT into
// clauses. It understands one level of quoting and parenthesis nesting, which
// covers what the upstream draft generator emits.
func Parse(sql string) (*Statement, error) {
	text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if text == "" {
		return nil, ErrNotSelect
	}
	upper := strings.ToUpper(text)
	if !strings.HasPrefix(upper, "SELECT") {
		return nil, ErrNotSelect
	}

	type marker struct {
		keyword string
		pos     int
	}
	keywords := []string{" FROM ", " WHERE ", " GROUP BY ", " ORDER BY ", " LIMIT "}
	markers := make([]marker, 0, len(keywords))
	for _, kw := range keywords {
		if pos := indexTopLevel(upper, kw); pos >= 0 {
			markers = append(markers, marker{keyword: strings.TrimSpace(kw), pos: pos})
		}
	}
	// Clause keywords must appear in order; anything else is beyond this parser.
	for i := 1; i < len(markers); i++ {
		if markers[i].pos < markers[i-1].pos {
			return nil, fmt.Errorf("clauses out of order near %q", markers[i].keyword)
		}
	}

	section := func(from, to int) string {
		if to < 0 {
			to = len(text)
		}
		return strings.TrimSpace(text[from:to])
	}

	stmt := &Statement{}
	prevEnd := len("SELECT")
	bounds := append(markers, marker{pos: -1})
	for i, m := range markers {
		clause := section(prevEnd, m.pos)
		if i == 0 {
			stmt.Select = splitTopLevel(clause, ",")
		}
		body := section(m.pos+len(m.keyword)+1, bounds[i+1].pos)
		switch m.keyword {
		case "FROM":
			stmt.From = body
		case "WHERE":
			stmt.Where = mergeBetween(splitTopLevel(body, " AND "))
		case "GROUP BY":
			stmt.GroupBy = splitTopLevel(body, ",")
		case "ORDER BY":
			stmt.OrderBy = body
		case "LIMIT":
			fmt.Sscanf(body, "%d", &stmt.Limit)
		}
		prevEnd = m.pos + len(m.keyword) + 1
	}
	if len(markers) == 0 || markers[0].keyword != "FROM" {
		return nil, fmt.Errorf("missing FROM clause")
	}
	if len(stmt.Select) == 0 {
		return nil, ErrNotSelect
	}
	return stmt, nil
}

// Render produces canonical SQL text for the statement.
func (s *Statement) Render() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.Select, ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.From)
	if len(s.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.Where, " AND "))
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.GroupBy, ", "))
	}
	if s.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.OrderBy)
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	return b.String()
}

// Clone returns a deep copy so rules can rewrite without aliasing.
func (s *Statement) Clone() *Statement {
	dup := *s
	dup.Select = append([]string(nil), s.Select...)
	dup.Where = append([]string(nil), s.Where...)
	dup.GroupBy = append([]string(nil), s.GroupBy...)
	return &dup
}

// IsAggregate reports whether the statement has a counting/grouping shape.
func (s *Statement) IsAggregate() bool {
	if len(s.GroupBy) > 0 {
		return true
	}
	for _, col := range s.Select {
		if strings.Contains(strings.ToUpper(col), "COUNT(") {
			return true
		}
	}
	return false
}

// ConditionsOn returns the indices of WHERE conditions referencing the column.
func (s *Statement) ConditionsOn(column string) []int {
	var out []int
	needle := strings.ToLower(column)
	for i, cond := range s.Where {
		if strings.Contains(strings.ToLower(cond), needle) {
			out = append(out, i)
		}
	}
	return out
}

// HasColumnCondition reports whether any WHERE condition references the column.
func (s *Statement) HasColumnCondition(column string) bool {
	return len(s.ConditionsOn(column)) > 0
}

// ReplaceCondition swaps the WHERE condition at index i.
func (s *Statement) ReplaceCondition(i int, cond string) {
	if i >= 0 && i < len(s.Where) {
		s.Where[i] = cond
	}
}

// AddCondition appends a WHERE condition.
func (s *Statement) AddCondition(cond string) {
	s.Where = append(s.Where, cond)
}

// RemoveCondition deletes the WHERE condition at index i.
func (s *Statement) RemoveCondition(i int) {
	if i >= 0 && i < len(s.Where) {
		s.Where = append(s.Where[:i], s.Where[i+1:]...)
	}
}

// HasSelectColumn reports whether the SELECT list already names the column.
func (s *Statement) HasSelectColumn(column string) bool {
	needle := strings.ToLower(column)
	for _, col := range s.Select {
		if strings.Contains(strings.ToLower(col), needle) {
			return true
		}
		if strings.TrimSpace(col) == "*" {
			return true
		}
	}
	return false
}

// EnsureSelectColumns appends any missing columns to the SELECT list. It is a
// no-op on aggregate shapes, which own their projection.
func (s *Statement) EnsureSelectColumns(columns ...string) []string {
	if s.IsAggregate() {
		return nil
	}
	var added []string
	for _, col := range columns {
		if !s.HasSelectColumn(col) {
			s.Select = append(s.Select, col)
			added = append(added, col)
		}
	}
	return added
}

// mergeBetween rejoins condition fragments produced by splitting a BETWEEN
// expression at its inner AND.
func mergeBetween(conds []string) []string {
	var out []string
	for i := 0; i < len(conds); i++ {
		cond := conds[i]
		upper := strings.ToUpper(cond)
		if i+1 < len(conds) && strings.Contains(upper, " BETWEEN ") && !strings.Contains(upper[strings.Index(upper, " BETWEEN "):], " AND ") {
			cond = cond + " AND " + conds[i+1]
			i++
		}
		out = append(out, cond)
	}
	return out
}

// indexTopLevel finds the keyword outside quotes and parentheses. The haystack
// must already be upper-cased; the keyword includes its surrounding spaces.
func indexTopLevel(upper, keyword string) int {
	depth := 0
	inQuote := false
	for i := 0; i+len(keyword) <= len(upper); i++ {
		switch upper[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote && depth > 0 {
				depth--
			}
		}
		if inQuote || depth > 0 {
			continue
		}
		if strings.HasPrefix(upper[i:], keyword) {
			return i
		}
	}
	return -1
}

// splitTopLevel splits on the separator outside quotes and parentheses,
// matching the separator case-insensitively.
func splitTopLevel(text, sep string) []string {
	var parts []string
	upper := strings.ToUpper(text)
	sepUpper := strings.ToUpper(sep)
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote && depth > 0 {
				depth--
			}
		}
		if inQuote || depth > 0 {
			continue
		}
		if strings.HasPrefix(upper[i:], sepUpper) {
			if piece := strings.TrimSpace(text[start:i]); piece != "" {
				parts = append(parts, piece)
			}
			i += len(sep) - 1
			start = i + 1
		}
	}
	if piece := strings.TrimSpace(text[start:]); piece != "" {
		parts = append(parts, piece)
	}
	return parts
}
