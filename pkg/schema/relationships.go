package schema

import (
	"fmt"
	"reflect"
)

// ParseRelationships extracts relationship metadata from struct fields.
func (p *Parser) ParseRelationships(modelType reflect.Type, table *TableMetadata) error {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return fmt.Errorf("model must be a struct")
	}

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
		if err != nil || !p.isRelationshipTag(tagOpts) {
			continue
		}

		rel, err := p.parseRelationship(field, tagOpts, table)
		if err != nil {
			return fmt.Errorf("failed to parse relationship for field %s: %w", field.Name, err)
		}
		table.Relationships = append(table.Relationships, *rel)
	}

	return nil
}

func (p *Parser) parseRelationship(field reflect.StructField, opts *TagOptions, source *TableMetadata) (*RelationshipMetadata, error) {
	rel := &RelationshipMetadata{
		SourceTable: source.Name,
		SourceField: field.Name,
		ForeignKey:  opts.Get("foreignKey"),
		References:  opts.Get("references"),
	}

	switch {
	case opts.Has("belongsTo"):
		rel.Type = BelongsTo
	case opts.Has("hasOne"):
		rel.Type = HasOne
	case opts.Has("hasMany"):
		rel.Type = HasMany
	case opts.Has("manyToMany"):
		rel.Type = ManyToMany
	}

	fieldType := field.Type
	if fieldType.Kind() == reflect.Slice {
		if rel.Type == BelongsTo || rel.Type == HasOne {
			return nil, fmt.Errorf("%s field must not be a slice", rel.Type)
		}
		fieldType = fieldType.Elem()
	} else if rel.Type == HasMany || rel.Type == ManyToMany {
		return nil, fmt.Errorf("%s field must be a slice", rel.Type)
	}
	for fieldType.Kind() == reflect.Pointer {
		fieldType = fieldType.Elem()
	}
	if fieldType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("relationship target must be a struct, got %s", fieldType.Kind())
	}
	rel.TargetType = fieldType
	rel.TargetTable = TableNameOf(fieldType)

	if rel.ForeignKey == "" {
		switch rel.Type {
		case BelongsTo:
			rel.ForeignKey = toSnakeCase(fieldType.Name()) + "_id"
		case HasOne, HasMany, ManyToMany:
			rel.ForeignKey = toSnakeCase(source.GoType.Name()) + "_id"
		}
	}
	if rel.References == "" {
		rel.References = "id"
	}

	if rel.Type == ManyToMany {
		joinTable := opts.Get("joinTable")
		if joinTable == "" {
			joinTable = generateJunctionTableName(source.Name, rel.TargetTable)
		}
		rel.JoinTable = &joinTable
		rel.TargetKey = opts.Get("targetKey")
		if rel.TargetKey == "" {
			rel.TargetKey = toSnakeCase(fieldType.Name()) + "_id"
		}
		if rel.TargetKey == rel.ForeignKey {
			return nil, fmt.Errorf("join table %s needs distinct keys, both are %q", joinTable, rel.ForeignKey)
		}
	}

	return rel, nil
}

// generateJunctionTableName orders the two names alphabetically.
func generateJunctionTableName(table1, table2 string) string {
	if table1 > table2 {
		table1, table2 = table2, table1
	}
	return table1 + "_" + table2
}

// JunctionTable builds the link table behind a manyToMany relationship.
// Both link columns reference their owners with ON DELETE CASCADE and the
// pair is unique, so a link exists at most once and vanishes with either end.
func JunctionTable(source, target *TableMetadata, rel RelationshipMetadata) *TableMetadata {
	name := *rel.JoinTable
	sourceRef := rel.References
	targetRef := "id"
	if target.PrimaryKey != nil && len(target.PrimaryKey.Columns) == 1 {
		targetRef = target.PrimaryKey.Columns[0]
	}

	link := func(col string, pos int, ref *TableMetadata, refCol string) ColumnMetadata {
		sqlType := "bigint"
		if c := ref.GetColumnByName(refCol); c != nil {
			sqlType = linkType(c.SQLType)
		}
		return ColumnMetadata{Name: col, GoField: col, SQLType: sqlType, Position: pos}
	}

	return &TableMetadata{
		Name:     name,
		Junction: true,
		Columns: []ColumnMetadata{
			{
				Name:     "id",
				GoField:  "ID",
				SQLType:  "bigint",
				Identity: &IdentityColumn{Generation: IdentityByDefault},
			},
			link(rel.ForeignKey, 1, source, sourceRef),
			link(rel.TargetKey, 2, target, targetRef),
		},
		PrimaryKey: &PrimaryKeyMetadata{Name: name + "_pkey", Columns: []string{"id"}},
		ForeignKeys: []ForeignKeyMetadata{
			{
				Name:              fmt.Sprintf("fk_%s_%s_%s", name, rel.ForeignKey, source.Name),
				Columns:           []string{rel.ForeignKey},
				ReferencedTable:   source.Name,
				ReferencedColumns: []string{sourceRef},
				OnDelete:          Cascade,
				OnUpdate:          NoAction,
			},
			{
				Name:              fmt.Sprintf("fk_%s_%s_%s", name, rel.TargetKey, target.Name),
				Columns:           []string{rel.TargetKey},
				ReferencedTable:   target.Name,
				ReferencedColumns: []string{targetRef},
				OnDelete:          Cascade,
				OnUpdate:          NoAction,
			},
		},
		Indexes: []IndexMetadata{{
			Name:    fmt.Sprintf("idx_%s_%s", name, rel.TargetKey),
			Columns: []string{rel.TargetKey},
			Type:    "btree",
		}},
		Constraints: []ConstraintMetadata{{
			Name:    fmt.Sprintf("%s_%s_%s_key", name, rel.ForeignKey, rel.TargetKey),
			Type:    UniqueConstraint,
			Columns: []string{rel.ForeignKey, rel.TargetKey},
		}},
	}
}

// linkType maps a referenced column type to the type of a column pointing at it.
func linkType(sqlType string) string {
	switch sqlType {
	case "serial":
		return "integer"
	case "bigserial":
		return "bigint"
	case "smallserial":
		return "smallint"
	}
	return sqlType
}

// GetRelationship returns a relationship by source field name.
func (t *TableMetadata) GetRelationship(fieldName string) *RelationshipMetadata {
	for i := range t.Relationships {
		if t.Relationships[i].SourceField == fieldName {
			return &t.Relationships[i]
		}
	}
	return nil
}

// GetRelationshipsByType returns all relationships of a specific type.
func (t *TableMetadata) GetRelationshipsByType(relType RelationType) []RelationshipMetadata {
	var result []RelationshipMetadata
	for _, rel := range t.Relationships {
		if rel.Type == relType {
			result = append(result, rel)
		}
	}
	return result
}

// HasRelationships checks if the table has any relationships.
func (t *TableMetadata) HasRelationships() bool {
	return len(t.Relationships) > 0
}
