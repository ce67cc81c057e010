package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

const (
	// StructTagKey is the key used in struct tags (e.g., `po:"..."`).
	StructTagKey = "po"
)

// Tabler lets a model choose its own table name.
type Tabler interface {
	TableName() string
}

var tablerType = reflect.TypeOf((*Tabler)(nil)).Elem()

// Parser parses struct definitions to extract table metadata.
type Parser struct {
	typeMapper *TypeMapper
	cache      map[reflect.Type]*TableMetadata
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{
		typeMapper: DefaultTypeMapper,
		cache:      make(map[reflect.Type]*TableMetadata),
	}
}

var (
	tableNamesMu     sync.RWMutex
	customTableNames = make(map[string]string) // struct name -> table name
)

// RegisterTableName pins the table name for a struct type by its Go name.
// It wins over a TableName method and the snake_case default.
func RegisterTableName(structName, tableName string) {
	tableNamesMu.Lock()
	defer tableNamesMu.Unlock()
	customTableNames[structName] = tableName
}

// TableNameOf resolves the table name for a model type.
func TableNameOf(modelType reflect.Type) string {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	tableNamesMu.RLock()
	name, ok := customTableNames[modelType.Name()]
	tableNamesMu.RUnlock()
	if ok {
		return name
	}

	if modelType.Implements(tablerType) {
		return reflect.Zero(modelType).Interface().(Tabler).TableName()
	}
	if reflect.PointerTo(modelType).Implements(tablerType) {
		return reflect.New(modelType).Interface().(Tabler).TableName()
	}

	return toSnakeCase(modelType.Name())
}

// Parse extracts TableMetadata from a Go struct type.
func (p *Parser) Parse(modelType reflect.Type) (*TableMetadata, error) {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}
	if cached, ok := p.cache[modelType]; ok {
		return cached, nil
	}

	table := &TableMetadata{
		Name:        TableNameOf(modelType),
		GoType:      modelType,
		Columns:     make([]ColumnMetadata, 0),
		ForeignKeys: make([]ForeignKeyMetadata, 0),
		Indexes:     make([]IndexMetadata, 0),
		Constraints: make([]ConstraintMetadata, 0),
	}

	// unique(group) columns, collected in declaration order
	uniqueGroups := make(map[string][]string)
	var groupOrder []string

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagValue := field.Tag.Get(StructTagKey)
		if tagValue == "" {
			continue
		}

		tagOpts, err := p.parseTag(tagValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tag for field %s: %w", field.Name, err)
		}
		if p.isRelationshipTag(tagOpts) {
			continue
		}
		if tagOpts.Name == "-" {
			continue
		}

		column, err := p.createColumnMetadata(field, tagOpts, len(table.Columns))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		if tagOpts.Has("primaryKey") {
			if table.PrimaryKey == nil {
				table.PrimaryKey = &PrimaryKeyMetadata{
					Columns: []string{column.Name},
					Name:    table.Name + "_pkey",
				}
			} else {
				table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, column.Name)
			}
		}

		if group := tagOpts.Get("unique"); group != "" {
			if _, seen := uniqueGroups[group]; !seen {
				groupOrder = append(groupOrder, group)
			}
			uniqueGroups[group] = append(uniqueGroups[group], column.Name)
		}

		if fk, err := p.parseForeignKey(table.Name, column.Name, tagOpts); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		} else if fk != nil {
			if fk.OnDelete == SetNull && !column.Nullable {
				return nil, fmt.Errorf("field %s: onDelete(setNull) requires a nullable column", field.Name)
			}
			table.ForeignKeys = append(table.ForeignKeys, *fk)
		}

		if expr := tagOpts.Get("check"); expr != "" {
			table.Constraints = append(table.Constraints, ConstraintMetadata{
				Name:       fmt.Sprintf("%s_%s_check", table.Name, column.Name),
				Type:       CheckConstraint,
				Columns:    []string{column.Name},
				Expression: "(" + expr + ")",
			})
		}

		if tagOpts.Has("index") {
			table.Indexes = append(table.Indexes, parseIndex(table.Name, column.Name, tagOpts.Get("index")))
		}

		table.Columns = append(table.Columns, column)
	}

	for _, group := range groupOrder {
		cols := uniqueGroups[group]
		if len(cols) == 1 {
			// A group of one is a plain column UNIQUE.
			table.GetColumnByName(cols[0]).Unique = true
			continue
		}
		table.Constraints = append(table.Constraints, ConstraintMetadata{
			Name:    fmt.Sprintf("%s_%s_key", table.Name, strings.Join(cols, "_")),
			Type:    UniqueConstraint,
			Columns: cols,
		})
	}

	if err := p.ParseRelationships(modelType, table); err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}

	p.cache[modelType] = table
	return table, nil
}

// createColumnMetadata creates a ColumnMetadata from a struct field.
func (p *Parser) createColumnMetadata(field reflect.StructField, opts *TagOptions, position int) (ColumnMetadata, error) {
	column := ColumnMetadata{
		Name:     opts.Name,
		GoField:  field.Name,
		GoType:   field.Type,
		Position: position,
	}

	if sqlType := opts.GetSQLType(); sqlType != "" {
		column.SQLType = sqlType
	} else {
		column.SQLType = p.typeMapper.GoTypeToPostgreSQL(field.Type)
	}
	if column.SQLType == "" {
		return column, fmt.Errorf("no SQL type for Go type %s; add one to the tag", field.Type)
	}

	column.Nullable = !opts.Has("notNull") && !opts.Has("primaryKey")
	if IsNullable(field.Type) {
		column.Nullable = true
	}

	if opts.Has("default") {
		defaultVal := opts.Get("default")
		if err := ValidateDefaultValue(defaultVal); err != nil {
			return column, err
		}
		column.Default = &defaultVal
	}

	column.Unique = opts.Has("unique") && opts.Get("unique") == ""
	column.AutoIncrement = opts.Has("autoIncrement") || opts.Has("serial") || opts.Has("bigserial")

	switch {
	case opts.Has("identity"), opts.Has("identityAlways"):
		column.Identity = &IdentityColumn{Generation: IdentityAlways}
	case opts.Has("identityByDefault"):
		column.Identity = &IdentityColumn{Generation: IdentityByDefault}
	}

	column.AutoNowAdd = opts.Has("autoNowAdd")
	column.AutoNow = opts.Has("autoNow")
	if column.Managed() {
		if column.AutoNow && column.AutoNowAdd {
			return column, fmt.Errorf("autoNow and autoNowAdd are mutually exclusive")
		}
		column.Nullable = false
		if column.Default == nil {
			now := "NOW()"
			column.Default = &now
		}
	}

	return column, nil
}

// parseForeignKey reads fk(table.column) and its onDelete/onUpdate rules.
func (p *Parser) parseForeignKey(tableName, columnName string, opts *TagOptions) (*ForeignKeyMetadata, error) {
	ref := opts.Get("fk")
	if ref == "" {
		if opts.Has("onDelete") || opts.Has("onUpdate") {
			return nil, fmt.Errorf("onDelete/onUpdate given without fk")
		}
		return nil, nil
	}

	refTable, refColumn, ok := strings.Cut(ref, ".")
	if !ok || refTable == "" || refColumn == "" {
		return nil, fmt.Errorf("invalid fk reference %q, expected table.column", ref)
	}

	onDelete, err := ParseReferenceAction(opts.Get("onDelete"))
	if err != nil {
		return nil, err
	}
	onUpdate, err := ParseReferenceAction(opts.Get("onUpdate"))
	if err != nil {
		return nil, err
	}

	return &ForeignKeyMetadata{
		Name:              fmt.Sprintf("fk_%s_%s_%s", tableName, columnName, refTable),
		Columns:           []string{columnName},
		ReferencedTable:   refTable,
		ReferencedColumns: []string{refColumn},
		OnDelete:          onDelete,
		OnUpdate:          onUpdate,
	}, nil
}

// parseIndex builds an index from index, index(name) or index(name,method).
func parseIndex(tableName, columnName, value string) IndexMetadata {
	idx := IndexMetadata{
		Name:    fmt.Sprintf("idx_%s_%s", tableName, columnName),
		Columns: []string{columnName},
		Type:    "btree",
	}
	if value == "" {
		return idx
	}
	parts := strings.Split(value, ",")
	if name := strings.TrimSpace(parts[0]); name != "" {
		idx.Name = name
	}
	if len(parts) > 1 {
		if method := strings.TrimSpace(parts[1]); method != "" {
			idx.Type = strings.ToLower(method)
		}
	}
	return idx
}

// ParseReferenceAction converts a tag or catalog rule into a ReferenceAction.
// An empty string means NO ACTION; unknown rules are rejected.
func ParseReferenceAction(action string) (ReferenceAction, error) {
	normalized := strings.ToUpper(strings.TrimSpace(action))
	normalized = strings.NewReplacer("_", "", " ", "").Replace(normalized)

	switch normalized {
	case "", "NOACTION", "DONOTHING":
		return NoAction, nil
	case "CASCADE":
		return Cascade, nil
	case "RESTRICT", "PROTECT":
		return Restrict, nil
	case "SETNULL":
		return SetNull, nil
	case "SETDEFAULT":
		return SetDefault, nil
	default:
		return "", fmt.Errorf("unknown referential action %q", action)
	}
}

// isRelationshipTag checks if tag options indicate a relationship field.
func (p *Parser) isRelationshipTag(opts *TagOptions) bool {
	return opts.Has("belongsTo") || opts.Has("hasOne") ||
		opts.Has("hasMany") || opts.Has("manyToMany")
}

// TagOptions represents parsed tag options.
type TagOptions struct {
	Name    string            // Column name (first element)
	Options map[string]string // Other options
}

// parseTag parses a struct tag value into TagOptions.
// Format: "column_name,option1,option2(value),option3:value"
func (p *Parser) parseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("empty tag value")
	}
	opts := &TagOptions{
		Name:    parts[0],
		Options: make(map[string]string),
	}
	for _, opt := range parts[1:] {
		if opt == "" {
			continue
		}
		if idx := strings.Index(opt, "("); idx != -1 {
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			opts.Options[opt[:idx]] = opt[idx+1 : len(opt)-1]
		} else if key, value, ok := strings.Cut(opt, ":"); ok {
			opts.Options[key] = value
		} else {
			opts.Options[opt] = ""
		}
	}
	return opts, nil
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

var pgTypes = []string{
	"uuid", "varchar", "text", "char",
	"smallint", "integer", "bigint", "serial", "bigserial",
	"numeric", "decimal", "real", "double precision",
	"boolean", "bool",
	"date", "time", "timestamp", "timestamptz", "interval",
	"json", "jsonb",
	"bytea",
	"inet", "cidr",
}

// GetSQLType returns the SQL type named in the tag, if any.
func (t *TagOptions) GetSQLType() string {
	for _, pgType := range pgTypes {
		if t.Has(pgType) {
			if value := t.Get(pgType); value != "" {
				return fmt.Sprintf("%s(%s)", pgType, value)
			}
			return pgType
		}
	}
	return ""
}

// splitTag splits a tag value by commas, handling nested parentheses and
// single-quoted literals.
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	quoted := false
	for _, ch := range tag {
		switch {
		case ch == '\'':
			quoted = !quoted
			current.WriteRune(ch)
		case quoted:
			current.WriteRune(ch)
		case ch == '(':
			depth++
			current.WriteRune(ch)
		case ch == ')':
			depth--
			current.WriteRune(ch)
		case ch == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// toSnakeCase converts PascalCase to snake_case, keeping initialisms
// together ("OrderItemID" -> "order_item_id").
func toSnakeCase(s string) string {
	runes := []rune(s)
	var result strings.Builder
	for i, ch := range runes {
		isUpper := ch >= 'A' && ch <= 'Z'
		if isUpper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z' || runes[i-1] >= '0' && runes[i-1] <= '9'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z') {
				result.WriteByte('_')
			}
		}
		result.WriteRune(ch)
	}
	return strings.ToLower(result.String())
}
