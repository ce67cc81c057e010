package schema

import (
	"fmt"
	"strings"
)

// typoFixes maps common misspellings of default expressions to their fix.
var typoFixes = []struct{ typo, fix string }{
	{"CURRENT TIMESTAMP", "CURRENT_TIMESTAMP"},
	{"CURRENT TIME", "CURRENT_TIME"},
	{"CURRENT DATE", "CURRENT_DATE"},
	{"NOW ()", "NOW()"},
	{"GEN RANDOM UUID", "gen_random_uuid()"},
}

var defaultKeywords = map[string]bool{
	"NULL": true, "TRUE": true, "FALSE": true,
	"CURRENT_TIMESTAMP": true, "CURRENT_TIME": true, "CURRENT_DATE": true,
	"LOCALTIMESTAMP": true, "LOCALTIME": true,
}

// ValidateDefaultValue rejects default expressions that are almost
// certainly typos, suggesting the intended spelling.
func ValidateDefaultValue(defaultVal string) error {
	trimmed := strings.TrimSpace(defaultVal)
	upper := strings.ToUpper(trimmed)

	for _, m := range typoFixes {
		if strings.Contains(upper, m.typo) {
			return fmt.Errorf("invalid DEFAULT value %q: %q should be %q", defaultVal, m.typo, m.fix)
		}
	}

	if strings.Count(trimmed, "'")%2 != 0 {
		return fmt.Errorf("invalid DEFAULT value %q: unbalanced quote", defaultVal)
	}
	if strings.Count(trimmed, "(") != strings.Count(trimmed, ")") {
		return fmt.Errorf("invalid DEFAULT value %q: unbalanced parentheses", defaultVal)
	}

	if defaultKeywords[upper] || strings.ContainsAny(trimmed, "('") || isNumeric(trimmed) {
		return nil
	}
	lower := strings.ToLower(trimmed)
	if lower == "now" || strings.Contains(lower, "random") || strings.Contains(lower, "uuid") {
		return fmt.Errorf("invalid DEFAULT value %q: looks like a function call missing (); try default(%s())", defaultVal, trimmed)
	}

	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for i, c := range s {
		switch {
		case i == 0 && (c == '-' || c == '+'):
		case c == '.':
		case c >= '0' && c <= '9':
			digits++
		default:
			return false
		}
	}
	return digits > 0
}

// ValidateTable checks that every key, index and constraint of a table
// names columns the table actually has.
func ValidateTable(t *TableMetadata) error {
	if t.Name == "" {
		return fmt.Errorf("table has no name")
	}
	if t.PrimaryKey == nil {
		return fmt.Errorf("table %s: no primary key", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true
	}

	check := func(kind, name string, cols []string) error {
		if len(cols) == 0 {
			return fmt.Errorf("table %s: %s %s has no columns", t.Name, kind, name)
		}
		for _, col := range cols {
			if !seen[col] {
				return fmt.Errorf("table %s: %s %s references unknown column %s", t.Name, kind, name, col)
			}
		}
		return nil
	}

	if err := check("primary key", t.PrimaryKey.Name, t.PrimaryKey.Columns); err != nil {
		return err
	}
	for _, fk := range t.ForeignKeys {
		if err := check("foreign key", fk.Name, fk.Columns); err != nil {
			return err
		}
		if len(fk.Columns) != len(fk.ReferencedColumns) {
			return fmt.Errorf("table %s: foreign key %s has %d columns but references %d",
				t.Name, fk.Name, len(fk.Columns), len(fk.ReferencedColumns))
		}
	}
	for _, idx := range t.Indexes {
		if err := check("index", idx.Name, idx.Columns); err != nil {
			return err
		}
	}
	for _, c := range t.Constraints {
		if c.Type == CheckConstraint {
			if c.Expression == "" {
				return fmt.Errorf("table %s: check %s has no expression", t.Name, c.Name)
			}
			continue
		}
		if err := check("constraint", c.Name, c.Columns); err != nil {
			return err
		}
	}
	return nil
}
