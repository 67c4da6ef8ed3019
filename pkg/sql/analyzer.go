package sql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// category orders accumulated errors in the report.
type category int

const (
	catSyntax category = iota
	catTable
	catColumn
	catReadOnly
	catInjection
	numCategories
)

type collector struct {
	byCat [numCategories][]string
	seen  map[string]bool
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) addf(cat category, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.seen[msg] {
		return
	}
	c.seen[msg] = true
	c.byCat[cat] = append(c.byCat[cat], msg)
}

func (c *collector) list() []string {
	out := []string{}
	for _, msgs := range c.byCat {
		out = append(out, msgs...)
	}
	return out
}

// tableInfo is the lookup form of a schema table.
type tableInfo struct {
	name     string
	columns  map[string]bool
	colNames []string
}

type schemaIndex struct {
	tables map[string]*tableInfo
	names  []string
}

func newSchemaIndex(schema *models.SchemaModel) *schemaIndex {
	idx := &schemaIndex{tables: make(map[string]*tableInfo)}
	if schema == nil {
		return idx
	}
	for _, t := range schema.Tables {
		info := &tableInfo{name: t.Name, columns: make(map[string]bool, len(t.Columns))}
		for _, c := range t.Columns {
			info.columns[strings.ToLower(c.Name)] = true
			info.colNames = append(info.colNames, c.Name)
		}
		key := strings.ToLower(t.Name)
		idx.tables[key] = info
		// schema-qualified names are also reachable by their bare name
		if dot := strings.LastIndex(key, "."); dot >= 0 {
			if _, exists := idx.tables[key[dot+1:]]; !exists {
				idx.tables[key[dot+1:]] = info
			}
		}
		idx.names = append(idx.names, t.Name)
	}
	sort.Strings(idx.names)
	return idx
}

// columnSet is the set of columns a relation exposes. Opaque sets come from
// relations whose shape cannot be known statically (table functions, SELECT *
// over an unknown table) and accept any column.
type columnSet struct {
	names  map[string]bool
	order  []string
	opaque bool
}

func opaqueColumns() *columnSet {
	return &columnSet{opaque: true}
}

func newColumnSet(names ...string) *columnSet {
	cs := &columnSet{names: make(map[string]bool, len(names))}
	for _, n := range names {
		cs.add(n)
	}
	return cs
}

func (cs *columnSet) add(name string) {
	key := strings.ToLower(name)
	if cs.names[key] {
		return
	}
	cs.names[key] = true
	cs.order = append(cs.order, name)
}

func (cs *columnSet) has(name string) bool {
	return cs.opaque || cs.names[name]
}

// source is one relation visible in a FROM clause.
type source struct {
	name    string // visible name, lower-cased; empty for an unaliased derived table
	table   string // underlying schema table, if any
	columns *columnSet
}

func (s *source) describe() string {
	if s.table != "" && !strings.EqualFold(s.table, s.name) {
		return fmt.Sprintf("%q (table %q)", s.name, s.table)
	}
	if s.table != "" {
		return fmt.Sprintf("table %q", s.table)
	}
	return fmt.Sprintf("%q", s.name)
}

// scope is one level of name resolution. WITH clauses and SELECTs each open
// a scope; subqueries see every enclosing scope.
type scope struct {
	parent  *scope
	ctes    map[string]*columnSet
	sources []*source
	aliases map[string]bool
	windows map[string]bool
	using   map[string]bool // columns merged by JOIN ... USING
}

func (sc *scope) lookupCTE(name string) (*columnSet, bool) {
	for s := sc; s != nil; s = s.parent {
		if cols, ok := s.ctes[name]; ok {
			return cols, true
		}
	}
	return nil, false
}

func (sc *scope) lookupSource(name string) (*source, bool) {
	for s := sc; s != nil; s = s.parent {
		for _, src := range s.sources {
			if src.name == name {
				return src, true
			}
		}
	}
	return nil, false
}

func (sc *scope) hasWindow(name string) bool {
	for s := sc; s != nil; s = s.parent {
		if s.windows[name] {
			return true
		}
	}
	return false
}

type analyzer struct {
	schema *schemaIndex
	errs   *collector
	opts   Options
}

// statement analyzes one complete input, which may hold several statements.
func (a *analyzer) statement(input string) {
	if strings.TrimSpace(input) == "" {
		a.errs.addf(catSyntax, "empty query")
		return
	}

	toks, err := tokenize(input)
	if err != nil {
		a.errs.addf(catSyntax, "%s", err.Error())
		return
	}

	stmts := splitStatements(toks)
	if len(stmts) == 0 {
		a.errs.addf(catSyntax, "empty query")
		return
	}
	if len(stmts) > 1 {
		a.errs.addf(catReadOnly, "multiple statements are not allowed; only a single SELECT is permitted")
		for _, s := range stmts[1:] {
			if mutating[s[0].upper] {
				a.errs.addf(catReadOnly, "statement is not read-only: %s", s[0].upper)
			}
		}
	}

	first := stmts[0]
	if err := checkBalanced(first); err != nil {
		a.errs.addf(catSyntax, "%s", err.Error())
		return
	}

	if a.opts.ScanLiterals {
		a.scanLiterals(first)
	}

	head := first[0]
	switch {
	case head.isKeyword("SELECT"), head.isKeyword("WITH"), head.isKeyword("VALUES"), head.isPunct("("):
		a.query(first, nil)
	case head.kind == tokIdent && mutating[head.upper]:
		a.errs.addf(catReadOnly, "statement is not read-only: %s; only SELECT queries are allowed", head.upper)
	default:
		a.errs.addf(catSyntax, "expected SELECT or WITH at start of statement, found %q", head.text)
	}
}

func splitStatements(toks []token) [][]token {
	var stmts [][]token
	start := 0
	for i, t := range toks {
		if t.isPunct(";") {
			if i > start {
				stmts = append(stmts, toks[start:i])
			}
			start = i + 1
		}
	}
	if start < len(toks) {
		stmts = append(stmts, toks[start:])
	}
	return stmts
}

func (a *analyzer) scanLiterals(toks []token) {
	for _, t := range toks {
		if t.kind != tokString {
			continue
		}
		if res := CheckLiteral(t.text); res != nil {
			a.errs.addf(catInjection, "string literal %q matches a SQL injection pattern (fingerprint %s)",
				truncateLiteral(t.text), res.Fingerprint)
		}
	}
}

func truncateLiteral(s string) string {
	const maxLen = 40
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// query analyzes [WITH ...] select [set-op select ...] and returns the
// columns of the first branch.
func (a *analyzer) query(toks []token, parent *scope) *columnSet {
	if len(toks) == 0 {
		a.errs.addf(catSyntax, "empty subquery")
		return opaqueColumns()
	}

	sc := parent
	i := 0
	if toks[0].isKeyword("WITH") {
		sc = &scope{parent: parent, ctes: make(map[string]*columnSet)}
		i = a.withClause(toks, sc)
		if i >= len(toks) {
			a.errs.addf(catSyntax, "WITH clause is not followed by a query")
			return opaqueColumns()
		}
	}

	var out *columnSet
	for k, part := range splitSetOperations(toks[i:]) {
		var cols *columnSet
		if len(part) == 0 {
			a.errs.addf(catSyntax, "set operation is missing a query")
			cols = opaqueColumns()
		} else if part[0].isPunct("(") {
			end := matchParen(part, 0)
			cols = a.query(part[1:end], sc)
			a.trailingClauses(part[end+1:], sc, cols)
		} else {
			cols = a.selectStmt(part, sc)
		}
		if k == 0 {
			out = cols
		}
	}
	return out
}

// withClause registers CTE definitions and returns the index of the main query.
func (a *analyzer) withClause(toks []token, sc *scope) int {
	i := 1
	recursive := false
	if i < len(toks) && toks[i].isKeyword("RECURSIVE") {
		recursive = true
		i++
	}

	for i < len(toks) {
		if !toks[i].isName() {
			a.errs.addf(catSyntax, "expected a CTE name after WITH, found %q", toks[i].text)
			return len(toks)
		}
		name := toks[i].name()
		i++

		var colList []string
		if i < len(toks) && toks[i].isPunct("(") {
			end := matchParen(toks, i)
			colList = nameList(toks[i+1 : end])
			i = end + 1
		}

		if i >= len(toks) || !toks[i].isKeyword("AS") {
			a.errs.addf(catSyntax, "expected AS after CTE name %q", name)
			return len(toks)
		}
		i++
		if i < len(toks) && toks[i].isKeyword("NOT") {
			i++
		}
		if i < len(toks) && toks[i].isKeyword("MATERIALIZED") {
			i++
		}
		if i >= len(toks) || !toks[i].isPunct("(") {
			a.errs.addf(catSyntax, "expected ( after AS in CTE %q", name)
			return len(toks)
		}
		end := matchParen(toks, i)
		body := toks[i+1 : end]
		i = end + 1

		if _, dup := sc.ctes[name]; dup {
			a.errs.addf(catTable, "CTE name %q is defined more than once", name)
		}

		if recursive {
			if colList != nil {
				sc.ctes[name] = newColumnSet(colList...)
			} else {
				sc.ctes[name] = opaqueColumns()
			}
		}

		var cols *columnSet
		switch {
		case len(body) == 0:
			a.errs.addf(catSyntax, "CTE %q has an empty body", name)
			cols = opaqueColumns()
		case body[0].kind == tokIdent && mutating[body[0].upper]:
			a.errs.addf(catReadOnly, "CTE %q contains a %s statement; only SELECT queries are allowed", name, body[0].upper)
			cols = opaqueColumns()
		default:
			cols = a.query(body, sc)
		}
		if colList != nil {
			cols = newColumnSet(colList...)
		}
		sc.ctes[name] = cols

		if i < len(toks) && toks[i].isPunct(",") {
			i++
			continue
		}
		break
	}
	return i
}

func nameList(toks []token) []string {
	var names []string
	for _, t := range toks {
		if t.isName() || t.kind == tokIdent {
			names = append(names, t.name())
		}
	}
	return names
}

func splitSetOperations(toks []token) [][]token {
	var parts [][]token
	depth, start := 0, 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		case depth == 0 && t.kind == tokIdent && setOperators[t.upper]:
			parts = append(parts, toks[start:i])
			if i+1 < len(toks) && (toks[i+1].isKeyword("ALL") || toks[i+1].isKeyword("DISTINCT")) {
				i++
			}
			start = i + 1
		}
	}
	return append(parts, toks[start:])
}

type clause struct {
	kind string
	toks []token
}

// splitClauses segments a SELECT at depth zero by its clause keywords.
func (a *analyzer) splitClauses(toks []token) []clause {
	var clauses []clause
	cur := clause{kind: "SELECT"}
	depth := 0
	begin := func(kind string) {
		clauses = append(clauses, cur)
		cur = clause{kind: kind}
	}

	for i := 1; i < len(toks); i++ {
		t := toks[i]
		if t.isPunct("(") {
			depth++
		} else if t.isPunct(")") {
			depth--
		}
		if depth != 0 || t.kind != tokIdent {
			cur.toks = append(cur.toks, t)
			continue
		}

		next := func(kw string) bool { return i+1 < len(toks) && toks[i+1].isKeyword(kw) }
		prev := func(kw string, back int) bool { return i-back >= 0 && toks[i-back].isKeyword(kw) }

		switch t.upper {
		case "FROM":
			// IS [NOT] DISTINCT FROM is an operator
			if prev("DISTINCT", 1) && (prev("IS", 2) || (prev("NOT", 2) && prev("IS", 3))) {
				cur.toks = append(cur.toks, t)
				continue
			}
			begin("FROM")
		case "INTO", "WHERE", "HAVING", "WINDOW", "QUALIFY", "LIMIT", "OFFSET", "FETCH":
			begin(t.upper)
		case "GROUP", "ORDER":
			if prev("WITHIN", 1) {
				cur.toks = append(cur.toks, t)
				continue
			}
			if !next("BY") {
				a.errs.addf(catSyntax, "expected BY after %s", t.upper)
				cur.toks = append(cur.toks, t)
				continue
			}
			begin(t.upper+" BY")
			i++
		case "FOR":
			if next("UPDATE") || next("SHARE") || next("NO") || next("KEY") {
				begin("FOR UPDATE")
				continue
			}
			begin("FOR")
		default:
			cur.toks = append(cur.toks, t)
		}
	}
	return append(clauses, cur)
}

// selectStmt analyzes a single SELECT and returns its output columns.
func (a *analyzer) selectStmt(toks []token, parent *scope) *columnSet {
	head := toks[0]
	switch {
	case head.isKeyword("VALUES"):
		a.checkExpr(toks[1:], &scope{parent: parent})
		return opaqueColumns()
	case head.isKeyword("SELECT"):
	case head.kind == tokIdent && mutating[head.upper]:
		a.errs.addf(catReadOnly, "statement is not read-only: %s; only SELECT queries are allowed", head.upper)
		return opaqueColumns()
	default:
		a.errs.addf(catSyntax, "expected SELECT, found %q", head.text)
		return opaqueColumns()
	}

	sc := &scope{parent: parent, aliases: make(map[string]bool), windows: make(map[string]bool)}
	clauses := a.splitClauses(toks)

	var conds [][]token
	for _, c := range clauses {
		switch c.kind {
		case "FROM":
			if len(c.toks) == 0 {
				a.errs.addf(catSyntax, "missing table after FROM")
				continue
			}
			conds = append(conds, a.fromClause(c.toks, sc)...)
		case "INTO":
			a.errs.addf(catReadOnly, "SELECT INTO creates a table; only plain SELECT queries are allowed")
		case "FOR UPDATE":
			a.errs.addf(catReadOnly, "SELECT ... FOR UPDATE/SHARE locks rows; only plain SELECT queries are allowed")
		case "WINDOW":
			a.windowClause(c.toks, sc)
		}
	}

	items := a.selectList(clauses[0].toks, sc)
	out := a.outputColumns(items, sc)

	for _, item := range items {
		a.checkExpr(item.expr, sc)
	}
	for _, cond := range conds {
		a.checkExpr(cond, sc)
	}
	for _, c := range clauses[1:] {
		switch c.kind {
		case "WHERE", "GROUP BY", "HAVING", "QUALIFY", "ORDER BY", "LIMIT", "OFFSET", "FETCH":
			if len(c.toks) == 0 && c.kind != "FETCH" {
				a.errs.addf(catSyntax, "empty %s clause", c.kind)
				continue
			}
			a.checkExpr(c.toks, sc)
		}
	}
	return out
}

// trailingClauses checks ORDER BY/LIMIT that follow a parenthesized query.
// They may only name the query's output columns.
func (a *analyzer) trailingClauses(toks []token, sc *scope, out *columnSet) {
	if len(toks) == 0 || out.opaque {
		return
	}
	a.checkExpr(toks, &scope{parent: sc, aliases: out.names})
}

type selectItem struct {
	expr  []token
	alias string
}

func (a *analyzer) selectList(toks []token, sc *scope) []selectItem {
	i := 0
	if i < len(toks) && toks[i].isKeyword("ALL") {
		i++
	}
	if i < len(toks) && toks[i].isKeyword("DISTINCT") {
		i++
		if i < len(toks) && toks[i].isKeyword("ON") && i+1 < len(toks) && toks[i+1].isPunct("(") {
			end := matchParen(toks, i+1)
			defer a.checkExpr(toks[i+2:end], sc)
			i = end + 1
		}
	}
	if i < len(toks) && toks[i].isKeyword("TOP") {
		i++
		if i < len(toks) && toks[i].isPunct("(") {
			i = matchParen(toks, i) + 1
		} else if i < len(toks) {
			i++
		}
		if i < len(toks) && toks[i].isKeyword("PERCENT") {
			i++
		}
		if i+1 < len(toks) && toks[i].isKeyword("WITH") && toks[i+1].isKeyword("TIES") {
			i += 2
		}
	}

	parts := splitCommas(toks[i:])
	if len(parts) == 1 && len(parts[0]) == 0 {
		a.errs.addf(catSyntax, "empty select list")
		return nil
	}

	items := make([]selectItem, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			a.errs.addf(catSyntax, "empty expression in select list")
			continue
		}
		item := selectItem{expr: p}
		n := len(p)
		switch {
		case n >= 2 && p[n-2].isKeyword("AS") && (p[n-1].isName() || p[n-1].kind == tokString || p[n-1].kind == tokIdent):
			item.alias = strings.ToLower(p[n-1].text)
			item.expr = p[:n-2]
		case n >= 2 && p[n-1].isName() && endsOperand(p[n-2]):
			item.alias = p[n-1].name()
			item.expr = p[:n-1]
		}
		if item.alias != "" {
			sc.aliases[item.alias] = true
		}
		items = append(items, item)
	}
	return items
}

// endsOperand reports whether t can end an expression, so a name after it is
// an implicit alias.
func endsOperand(t token) bool {
	switch t.kind {
	case tokNumber, tokString, tokParam, tokQuotedIdent:
		return true
	case tokPunct:
		return t.text == ")"
	case tokIdent:
		switch t.upper {
		case "END", "NULL", "TRUE", "FALSE":
			return true
		}
		return !reserved[t.upper]
	}
	return false
}

func splitCommas(toks []token) [][]token {
	var parts [][]token
	depth, start := 0, 0
	for i, t := range toks {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		case depth == 0 && t.isPunct(","):
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	return append(parts, toks[start:])
}

func (a *analyzer) outputColumns(items []selectItem, sc *scope) *columnSet {
	out := newColumnSet()
	for _, item := range items {
		if item.alias != "" {
			out.add(item.alias)
			continue
		}
		e := item.expr
		n := len(e)
		switch {
		case n == 1 && e[0].isOp("*"):
			for _, src := range sc.sources {
				if src.columns.opaque {
					return opaqueColumns()
				}
				for _, c := range src.columns.order {
					out.add(c)
				}
			}
		case n == 3 && e[0].isName() && e[1].isPunct(".") && e[2].isOp("*"):
			src, ok := sc.lookupSource(e[0].name())
			if !ok || src.columns.opaque {
				return opaqueColumns()
			}
			for _, c := range src.columns.order {
				out.add(c)
			}
		case n >= 1 && e[n-1].isName() && (n == 1 || e[n-2].isPunct(".")):
			out.add(e[n-1].name())
		case n >= 2 && e[0].kind == tokIdent && e[1].isPunct("("):
			out.add(e[0].name())
		}
	}
	return out
}

func (a *analyzer) windowClause(toks []token, sc *scope) {
	for _, def := range splitCommas(toks) {
		if len(def) < 3 || !def[0].isName() || !def[1].isKeyword("AS") || !def[2].isPunct("(") {
			a.errs.addf(catSyntax, "malformed WINDOW definition")
			continue
		}
		sc.windows[def[0].name()] = true
	}
	for _, def := range splitCommas(toks) {
		if len(def) >= 3 && def[2].isPunct("(") {
			end := matchParen(def, 2)
			a.checkExpr(def[3:end], sc)
		}
	}
}

// fromClause registers the sources of a FROM clause in sc and returns the
// join conditions, which are checked once every source is known.
func (a *analyzer) fromClause(toks []token, sc *scope) [][]token {
	var conds [][]token
	i := a.tableFactor(toks, 0, sc, &conds)

	for i < len(toks) {
		t := toks[i]
		switch {
		case t.isPunct(","):
			if i+1 >= len(toks) {
				a.errs.addf(catSyntax, "missing table after ',' in FROM clause")
				return conds
			}
			i = a.tableFactor(toks, i+1, sc, &conds)

		case isJoinStart(toks, i):
			for i < len(toks) && toks[i].kind == tokIdent && joinWords[toks[i].upper] {
				i++
			}
			if i >= len(toks) || !(toks[i].isKeyword("JOIN") || toks[i].isKeyword("APPLY")) {
				a.errs.addf(catSyntax, "expected JOIN in FROM clause")
				return conds
			}
			i++
			if i >= len(toks) {
				a.errs.addf(catSyntax, "missing table after JOIN")
				return conds
			}
			i = a.tableFactor(toks, i, sc, &conds)

			if i < len(toks) && toks[i].isKeyword("ON") {
				start := i + 1
				i = start
				depth := 0
				for i < len(toks) {
					if toks[i].isPunct("(") {
						depth++
					} else if toks[i].isPunct(")") {
						depth--
					} else if depth == 0 && (toks[i].isPunct(",") || isJoinStart(toks, i)) {
						break
					}
					i++
				}
				if i == start {
					a.errs.addf(catSyntax, "empty ON condition")
				}
				conds = append(conds, toks[start:i])
			} else if i < len(toks) && toks[i].isKeyword("USING") {
				i++
				if i >= len(toks) || !toks[i].isPunct("(") {
					a.errs.addf(catSyntax, "expected ( after USING")
					return conds
				}
				end := matchParen(toks, i)
				for _, name := range nameList(toks[i+1 : end]) {
					if sc.using == nil {
						sc.using = make(map[string]bool)
					}
					sc.using[name] = true
					a.resolveColumn(name, sc)
				}
				i = end + 1
			}

		default:
			a.errs.addf(catSyntax, "unexpected %q in FROM clause", t.text)
			return conds
		}
	}
	return conds
}

func isJoinStart(toks []token, i int) bool {
	t := toks[i]
	if t.kind != tokIdent {
		return false
	}
	if t.upper == "JOIN" {
		return true
	}
	if !joinWords[t.upper] {
		return false
	}
	// LEFT(...) and RIGHT(...) are string functions
	return !(i+1 < len(toks) && toks[i+1].isPunct("("))
}

// tableFactor parses one FROM item starting at i and returns the next index.
// Join conditions of a parenthesized join are appended to conds.
func (a *analyzer) tableFactor(toks []token, i int, sc *scope, conds *[][]token) int {
	if i < len(toks) && toks[i].isKeyword("LATERAL") {
		i++
	}
	if i < len(toks) && toks[i].isKeyword("ONLY") {
		i++
	}
	if i >= len(toks) {
		a.errs.addf(catSyntax, "missing table in FROM clause")
		return i
	}

	t := toks[i]
	switch {
	case t.isPunct("("):
		end := matchParen(toks, i)
		inner := toks[i+1 : end]
		i = end + 1
		if len(inner) > 0 && (inner[0].isKeyword("SELECT") || inner[0].isKeyword("WITH") ||
			inner[0].isKeyword("VALUES") || inner[0].isPunct("(")) && !isParenthesizedJoin(inner) {
			cols := a.query(inner, sc)
			alias, colList, next := parseAlias(toks, i)
			if colList != nil {
				cols = newColumnSet(colList...)
			}
			a.addSource(sc, &source{name: alias, columns: cols})
			return next
		}
		if len(inner) == 0 {
			a.errs.addf(catSyntax, "empty parentheses in FROM clause")
			return i
		}
		// parenthesized join
		*conds = append(*conds, a.fromClause(inner, sc)...)
		_, _, next := parseAlias(toks, i)
		return next

	case t.isName():
		parts := []token{t}
		i++
		for i+1 < len(toks) && toks[i].isPunct(".") && (toks[i+1].isName() || toks[i+1].kind == tokIdent) {
			parts = append(parts, toks[i+1])
			i += 2
		}

		if i < len(toks) && toks[i].isPunct("(") {
			// table function
			end := matchParen(toks, i)
			a.checkExpr(toks[i+1:end], sc)
			i = end + 1
			if i+1 < len(toks) && toks[i].isKeyword("WITH") && toks[i+1].upper == "ORDINALITY" {
				i += 2
			}
			alias, colList, next := parseAlias(toks, i)
			if alias == "" {
				alias = parts[len(parts)-1].name()
			}
			cols := opaqueColumns()
			if colList != nil {
				cols = newColumnSet(colList...)
			}
			a.addSource(sc, &source{name: alias, columns: cols})
			return next
		}

		name := parts[len(parts)-1].name()
		src := &source{name: name}
		if cols, ok := sc.lookupCTE(name); ok && len(parts) == 1 {
			src.columns = cols
		} else if info, ok := a.schema.tables[name]; ok {
			src.table = info.name
			src.columns = newColumnSet(info.colNames...)
		} else if info, ok := a.schema.tables[joinNames(parts)]; ok {
			src.table = info.name
			src.columns = newColumnSet(info.colNames...)
		} else {
			full := joinNames(parts)
			if hint := suggest(name, a.schema.names); hint != "" {
				a.errs.addf(catTable, "unknown table %q (did you mean %q?)", full, hint)
			} else {
				a.errs.addf(catTable, "unknown table %q", full)
			}
			src.columns = opaqueColumns()
		}

		i = skipTableHints(toks, i)
		alias, colList, next := parseAlias(toks, i)
		if alias != "" {
			src.name = alias
		}
		if colList != nil {
			src.columns = newColumnSet(colList...)
		}
		a.addSource(sc, src)
		return skipTableHints(toks, next)

	default:
		a.errs.addf(catSyntax, "unexpected %q in FROM clause", t.text)
		return len(toks)
	}
}

func isParenthesizedJoin(inner []token) bool {
	if !inner[0].isPunct("(") {
		return false
	}
	end := matchParen(inner, 0)
	for i := end + 1; i < len(inner); i++ {
		if isJoinStart(inner, i) {
			return true
		}
	}
	return false
}

func joinNames(parts []token) string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.name()
	}
	return strings.Join(names, ".")
}

// skipTableHints skips WITH (NOLOCK) and TABLESAMPLE clauses.
func skipTableHints(toks []token, i int) int {
	for i < len(toks) {
		switch {
		case toks[i].isKeyword("WITH") && i+1 < len(toks) && toks[i+1].isPunct("("):
			i = matchParen(toks, i+1) + 1
		case toks[i].isKeyword("TABLESAMPLE"):
			i++
			if i < len(toks) && toks[i].kind == tokIdent {
				i++
			}
			if i < len(toks) && toks[i].isPunct("(") {
				i = matchParen(toks, i) + 1
			}
			if i < len(toks) && toks[i].upper == "REPEATABLE" && i+1 < len(toks) && toks[i+1].isPunct("(") {
				i = matchParen(toks, i+1) + 1
			}
		default:
			return i
		}
	}
	return i
}

// parseAlias reads "[AS] alias [(col, ...)]" at i.
func parseAlias(toks []token, i int) (string, []string, int) {
	if i < len(toks) && toks[i].isKeyword("AS") {
		i++
	}
	if i >= len(toks) || !toks[i].isName() {
		return "", nil, i
	}
	alias := toks[i].name()
	i++
	var cols []string
	if i < len(toks) && toks[i].isPunct("(") {
		end := matchParen(toks, i)
		cols = nameList(toks[i+1 : end])
		i = end + 1
	}
	return alias, cols, i
}

func (a *analyzer) addSource(sc *scope, src *source) {
	if src.name != "" {
		for _, existing := range sc.sources {
			if existing.name == src.name {
				a.errs.addf(catTable, "table name %q is specified more than once; use distinct aliases", src.name)
				return
			}
		}
	}
	sc.sources = append(sc.sources, src)
}

// checkExpr resolves every column reference in an expression.
func (a *analyzer) checkExpr(toks []token, sc *scope) {
	for i := 0; i < len(toks); i++ {
		t := toks[i]

		switch t.kind {
		case tokPunct:
			if !t.isPunct("(") {
				continue
			}
			end := matchParen(toks, i)
			inner := toks[i+1 : end]
			if len(inner) > 0 && (inner[0].isKeyword("SELECT") || inner[0].isKeyword("WITH")) {
				a.query(inner, sc)
			} else {
				if i > 0 && toks[i-1].isKeyword("OVER") && len(inner) > 0 && inner[0].isName() && sc.hasWindow(inner[0].name()) {
					inner = inner[1:]
				}
				a.checkExpr(inner, sc)
			}
			i = end

		case tokOp:
			if t.text == "::" {
				i = skipTypeName(toks, i+1) - 1
			}

		case tokIdent, tokQuotedIdent:
			if t.kind == tokIdent && reserved[t.upper] {
				switch t.upper {
				case "AS":
					// CAST(x AS type) and inline aliases
					i = skipTypeName(toks, i+1) - 1
				case "OVER":
					if i+1 < len(toks) && toks[i+1].isName() {
						i++
					}
				}
				continue
			}

			if i+1 < len(toks) && toks[i+1].isPunct("(") {
				continue // function call
			}
			if t.kind == tokIdent && i+1 < len(toks) && toks[i+1].kind == tokString {
				continue // typed literal: DATE '2024-01-01'
			}

			if i+1 < len(toks) && toks[i+1].isPunct(".") {
				parts := []token{t}
				j := i + 1
				star := false
				for j+1 < len(toks) && toks[j].isPunct(".") {
					if toks[j+1].isOp("*") {
						star = true
						j += 2
						break
					}
					if !(toks[j+1].isName() || toks[j+1].kind == tokIdent) {
						break
					}
					parts = append(parts, toks[j+1])
					j += 2
				}
				i = j - 1
				if j < len(toks) && toks[j].isPunct("(") {
					continue // schema-qualified function
				}
				if len(parts) == 1 && !star {
					a.resolveColumn(t.name(), sc)
					continue
				}
				if star {
					a.resolveQualifier(parts[len(parts)-1].name(), joinNames(parts)+".*", sc)
					continue
				}
				a.resolveQualified(parts, sc)
				continue
			}

			name := t.name()
			if t.kind == tokIdent && soft[t.upper] && !a.columnVisible(name, sc) {
				continue
			}
			a.resolveColumn(name, sc)
		}
	}
}

// skipTypeName returns the index after a type name starting at i.
func skipTypeName(toks []token, i int) int {
	for i < len(toks) && (toks[i].kind == tokIdent || toks[i].kind == tokQuotedIdent) {
		if toks[i].kind == tokIdent && reserved[toks[i].upper] && !toks[i].isKeyword("ARRAY") {
			break
		}
		i++
		if i < len(toks) && toks[i].isPunct("(") {
			i = matchParen(toks, i) + 1
		}
		if i+1 < len(toks) && toks[i].isPunct("[") && toks[i+1].isPunct("]") {
			i += 2
		}
		if i < len(toks) && toks[i].isPunct(".") {
			i++
			continue
		}
		// multi-word types: DOUBLE PRECISION, TIMESTAMP WITH TIME ZONE, CHARACTER VARYING
		if i < len(toks) && toks[i].kind == tokIdent && soft[toks[i].upper] {
			continue
		}
		if i+2 < len(toks) && toks[i].isKeyword("WITH") && toks[i+1].upper == "TIME" && toks[i+2].upper == "ZONE" {
			i += 3
		}
		break
	}
	return i
}

func (a *analyzer) columnVisible(name string, sc *scope) bool {
	visible, _ := a.columnOwners(name, sc)
	return visible
}

// columnOwners resolves an unqualified column in the innermost scope that
// knows it. owners lists the sources of that scope exposing the column when
// more than one does and the reference is therefore ambiguous.
func (a *analyzer) columnOwners(name string, sc *scope) (bool, []*source) {
	for s := sc; s != nil; s = s.parent {
		if s.aliases[name] {
			return true, nil
		}
		var owners []*source
		opaque := false
		for _, src := range s.sources {
			if !src.columns.has(name) {
				continue
			}
			if src.columns.opaque {
				opaque = true
				continue
			}
			owners = append(owners, src)
		}
		if len(owners) == 0 && !opaque {
			continue
		}
		if len(owners) < 2 || opaque || s.using[name] {
			return true, nil
		}
		return true, owners
	}
	return false, nil
}

func (a *analyzer) resolveColumn(name string, sc *scope) {
	visible, owners := a.columnOwners(name, sc)
	if len(owners) > 1 {
		described := make([]string, len(owners))
		for i, src := range owners {
			described[i] = src.describe()
		}
		a.errs.addf(catColumn, "ambiguous column %q: present in %s", name, strings.Join(described, ", "))
		return
	}
	if visible {
		return
	}
	// whole-row reference to a source or CTE
	if _, ok := sc.lookupSource(name); ok {
		return
	}
	if _, ok := sc.lookupCTE(name); ok {
		return
	}

	var candidates []string
	var only *source
	for s := sc; s != nil; s = s.parent {
		for _, src := range s.sources {
			candidates = append(candidates, src.columns.order...)
		}
	}
	if sc != nil && len(sc.sources) == 1 {
		only = sc.sources[0]
	}

	msg := fmt.Sprintf("unknown column %q", name)
	if only != nil {
		msg += " in " + only.describe()
	}
	if hint := suggest(name, candidates); hint != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", hint)
	}
	a.errs.addf(catColumn, "%s", msg)
}

func (a *analyzer) resolveQualifier(qualifier, ref string, sc *scope) (*source, bool) {
	if src, ok := sc.lookupSource(qualifier); ok {
		return src, true
	}
	var visible []string
	for s := sc; s != nil; s = s.parent {
		for _, src := range s.sources {
			if src.name != "" {
				visible = append(visible, src.name)
			}
			if src.table != "" && strings.EqualFold(src.table, qualifier) && src.name != strings.ToLower(src.table) {
				a.errs.addf(catTable, "table %q is aliased as %q; reference %q through its alias", src.table, src.name, ref)
				return nil, false
			}
		}
	}
	if hint := suggest(qualifier, visible); hint != "" {
		a.errs.addf(catTable, "unknown table or alias %q in %q (did you mean %q?)", qualifier, ref, hint)
	} else {
		a.errs.addf(catTable, "unknown table or alias %q in %q", qualifier, ref)
	}
	return nil, false
}

func (a *analyzer) resolveQualified(parts []token, sc *scope) {
	n := len(parts)
	ref := joinNames(parts)
	column := parts[n-1].name()
	qualifier := parts[n-2].name()

	// composite field access: alias.column.field
	if n >= 3 {
		if _, ok := sc.lookupSource(qualifier); !ok {
			if src, ok := sc.lookupSource(parts[0].name()); ok {
				a.checkSourceColumn(src, parts[1].name(), ref)
				return
			}
		}
	}

	src, ok := a.resolveQualifier(qualifier, ref, sc)
	if !ok {
		return
	}
	a.checkSourceColumn(src, column, ref)
}

func (a *analyzer) checkSourceColumn(src *source, column, ref string) {
	if src.columns.has(column) {
		return
	}
	msg := fmt.Sprintf("unknown column %q: %s has no column %q", ref, src.describe(), column)
	if hint := suggest(column, src.columns.order); hint != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", hint)
	}
	a.errs.addf(catColumn, "%s", msg)
}
