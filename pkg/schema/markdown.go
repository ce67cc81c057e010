package schema

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownWriter renders table metadata as schema documentation.
type MarkdownWriter struct {
	writer io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that writes to w.
func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{writer: w}
}

// WriteMarkdown documents tables in the given order.
func WriteMarkdown(w io.Writer, tables []*TableMetadata) error {
	return NewMarkdownWriter(w).Write(tables)
}

// Write renders every table.
func (m *MarkdownWriter) Write(tables []*TableMetadata) error {
	if _, err := fmt.Fprint(m.writer, "# Database Schema\n\n"); err != nil {
		return err
	}
	for _, t := range tables {
		if err := m.writeTable(t); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (m *MarkdownWriter) writeTable(t *TableMetadata) error {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", t.Name)
	if t.Junction {
		b.WriteString("_Join table._\n\n")
	}

	b.WriteString("### Columns\n\n")
	for _, col := range t.Columns {
		if attrs := m.columnAttrs(t, col); attrs != "" {
			fmt.Fprintf(&b, "- **%s:** %s, %s\n", col.Name, col.SQLType, attrs)
		} else {
			fmt.Fprintf(&b, "- **%s:** %s\n", col.Name, col.SQLType)
		}
	}
	b.WriteString("\n")

	if len(t.ForeignKeys) > 0 {
		b.WriteString("### References\n\n")
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(&b, "- %s → %s.%s (on delete %s)\n",
				strings.Join(fk.Columns, ", "),
				fk.ReferencedTable,
				strings.Join(fk.ReferencedColumns, ", "),
				strings.ToLower(string(fk.OnDelete)))
		}
		b.WriteString("\n")
	}

	if len(t.Indexes) > 0 {
		b.WriteString("### Idx\n\n")
		for _, idx := range t.Indexes {
			suffix := ""
			if idx.Unique {
				suffix = ", unique"
			}
			fmt.Fprintf(&b, "- %s on (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), suffix)
		}
		b.WriteString("\n")
	}

	if len(t.Constraints) > 0 {
		b.WriteString("### Constraints\n\n")
		for _, c := range t.Constraints {
			switch c.Type {
			case UniqueConstraint:
				fmt.Fprintf(&b, "- %s: UNIQUE (%s)\n", c.Name, strings.Join(c.Columns, ", "))
			case CheckConstraint:
				fmt.Fprintf(&b, "- %s: CHECK %s\n", c.Name, c.Expression)
			}
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(m.writer, b.String())
	return err
}

func (m *MarkdownWriter) columnAttrs(t *TableMetadata, col ColumnMetadata) string {
	var attrs []string
	if t.IsPrimaryKey(col.Name) {
		attrs = append(attrs, "PK")
	}
	if col.Identity != nil {
		attrs = append(attrs, "IDENTITY")
	}
	if col.Unique {
		attrs = append(attrs, "UNIQUE")
	}
	if !col.Nullable {
		attrs = append(attrs, "NOT NULL")
	}
	if col.Default != nil {
		attrs = append(attrs, "DEFAULT "+*col.Default)
	}
	switch {
	case col.AutoNowAdd:
		attrs = append(attrs, "set on create")
	case col.AutoNow:
		attrs = append(attrs, "set on every save")
	}
	return strings.Join(attrs, ", ")
}
