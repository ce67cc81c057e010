package schema

import (
	"fmt"
	"sort"
	"strings"
)

// DeferredForeignKey is a foreign key that cannot be declared inline because
// its target is created later; it is added with ALTER TABLE afterwards.
type DeferredForeignKey struct {
	Table      string
	ForeignKey ForeignKeyMetadata
}

// SortTables orders tables so every referenced table precedes the tables
// pointing at it. Ties are broken by name, so the result is deterministic.
//
// A reference cycle is broken by deferring nullable foreign keys: the table
// with a pending nullable reference and the fewest pending NOT NULL
// references is released first. A cycle made only of NOT NULL references
// cannot be created and is an error.
func SortTables(tables []*TableMetadata) ([]*TableMetadata, []DeferredForeignKey, error) {
	byName := make(map[string]*TableMetadata, len(tables))
	for _, t := range tables {
		if _, dup := byName[t.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate table %s", t.Name)
		}
		byName[t.Name] = t
	}

	// pending[t] holds the foreign keys of t whose target is not created yet.
	pending := make(map[string][]ForeignKeyMetadata, len(tables))
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.ReferencedTable == t.Name {
				continue
			}
			if _, ok := byName[fk.ReferencedTable]; !ok {
				continue
			}
			pending[t.Name] = append(pending[t.Name], fk)
		}
	}

	remaining := make([]string, 0, len(tables))
	for name := range byName {
		remaining = append(remaining, name)
	}
	sort.Strings(remaining)

	created := make(map[string]bool, len(tables))
	ordered := make([]*TableMetadata, 0, len(tables))
	var deferred []DeferredForeignKey

	isReady := func(name string) bool {
		for _, fk := range pending[name] {
			if !created[fk.ReferencedTable] {
				return false
			}
		}
		return true
	}

	for len(remaining) > 0 {
		next := -1
		for i, name := range remaining {
			if isReady(name) {
				next = i
				break
			}
		}

		if next == -1 {
			victim, err := pickCycleBreak(remaining, pending, byName, created)
			if err != nil {
				return nil, nil, err
			}
			var keep []ForeignKeyMetadata
			for _, fk := range pending[victim] {
				if !created[fk.ReferencedTable] && foreignKeyNullable(byName[victim], fk) {
					deferred = append(deferred, DeferredForeignKey{Table: victim, ForeignKey: fk})
					continue
				}
				keep = append(keep, fk)
			}
			pending[victim] = keep
			continue
		}

		name := remaining[next]
		remaining = append(remaining[:next], remaining[next+1:]...)
		created[name] = true
		ordered = append(ordered, byName[name])
	}

	return ordered, deferred, nil
}

func pickCycleBreak(remaining []string, pending map[string][]ForeignKeyMetadata, byName map[string]*TableMetadata, created map[string]bool) (string, error) {
	best := ""
	bestHard := -1
	for _, name := range remaining {
		soft, hard := 0, 0
		for _, fk := range pending[name] {
			if created[fk.ReferencedTable] {
				continue
			}
			if foreignKeyNullable(byName[name], fk) {
				soft++
			} else {
				hard++
			}
		}
		if soft == 0 {
			continue
		}
		if best == "" || hard < bestHard {
			best, bestHard = name, hard
		}
	}
	if best == "" {
		return "", fmt.Errorf("foreign key cycle through NOT NULL columns: %s", strings.Join(remaining, ", "))
	}
	return best, nil
}

func foreignKeyNullable(t *TableMetadata, fk ForeignKeyMetadata) bool {
	for _, col := range fk.Columns {
		c := t.GetColumnByName(col)
		if c == nil || !c.Nullable {
			return false
		}
	}
	return true
}

// IsDeferred reports whether fk of table is in the deferred set.
func IsDeferred(deferred []DeferredForeignKey, table, fkName string) bool {
	for _, d := range deferred {
		if d.Table == table && d.ForeignKey.Name == fkName {
			return true
		}
	}
	return false
}
