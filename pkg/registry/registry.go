// Package registry keeps the parsed table metadata of every model.
package registry

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/marshallshelly/storefront/pkg/schema"
)

// Registry is a thread-safe registry for table metadata.
type Registry struct {
	mu        sync.RWMutex
	parser    *schema.Parser
	tables    map[reflect.Type]*schema.TableMetadata
	names     map[string]*schema.TableMetadata
	junctions map[string]*schema.TableMetadata
}

// NewRegistry creates a new Registry instance.
func NewRegistry() *Registry {
	return &Registry{
		parser:    schema.NewParser(),
		tables:    make(map[reflect.Type]*schema.TableMetadata),
		names:     make(map[string]*schema.TableMetadata),
		junctions: make(map[string]*schema.TableMetadata),
	}
}

func modelTypeOf(model any) (reflect.Type, error) {
	if model == nil {
		return nil, fmt.Errorf("model must be a struct, got nil")
	}
	modelType := reflect.TypeOf(model)
	if rt, ok := model.(reflect.Type); ok {
		modelType = rt
	}
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}
	return modelType, nil
}

// Register parses a model and records its metadata. Registering the same
// type twice is a no-op; two types claiming one table name is an error.
// Targets of manyToMany fields are registered too, and their join table is
// synthesised.
func (r *Registry) Register(model any) error {
	modelType, err := modelTypeOf(model)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.registerLocked(modelType)
	return err
}

func (r *Registry) registerLocked(modelType reflect.Type) (*schema.TableMetadata, error) {
	if table, ok := r.tables[modelType]; ok {
		return table, nil
	}

	table, err := r.parser.Parse(modelType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", modelType.Name(), err)
	}
	if err := schema.ValidateTable(table); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", modelType.Name(), err)
	}
	if other, ok := r.names[table.Name]; ok && other.GoType != modelType {
		return nil, fmt.Errorf("table %s already registered by %s", table.Name, other.GoType)
	}

	r.tables[modelType] = table
	r.names[table.Name] = table

	for _, rel := range table.GetRelationshipsByType(schema.ManyToMany) {
		if _, ok := r.junctions[*rel.JoinTable]; ok {
			continue
		}
		target, err := r.registerLocked(rel.TargetType)
		if err != nil {
			return nil, fmt.Errorf("relationship %s.%s: %w", modelType.Name(), rel.SourceField, err)
		}
		r.junctions[*rel.JoinTable] = schema.JunctionTable(table, target, rel)
	}

	return table, nil
}

// RegisterMetadata registers table metadata that has no Go type, such as
// a table read back from the database.
func (r *Registry) RegisterMetadata(table *schema.TableMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[table.Name]; ok {
		return nil
	}
	if table.GoType != nil {
		r.tables[table.GoType] = table
	}
	r.names[table.Name] = table
	return nil
}

// Get retrieves TableMetadata by Go type.
func (r *Registry) Get(modelType reflect.Type) (*schema.TableMetadata, error) {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	table, ok := r.tables[modelType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model type %s not registered", modelType.Name())
	}
	return table, nil
}

// GetByName retrieves TableMetadata by table name, junction tables included.
func (r *Registry) GetByName(tableName string) (*schema.TableMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if table, ok := r.names[tableName]; ok {
		return table, nil
	}
	if table, ok := r.junctions[tableName]; ok {
		return table, nil
	}
	return nil, fmt.Errorf("table %s not registered", tableName)
}

// GetOrRegister retrieves TableMetadata or registers it if not found.
func (r *Registry) GetOrRegister(model any) (*schema.TableMetadata, error) {
	modelType, err := modelTypeOf(model)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	table, ok := r.tables[modelType]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(modelType)
}

// All returns the metadata of every registered model, ordered by table name.
func (r *Registry) All() []*schema.TableMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tables := slices.Collect(maps.Values(r.names))
	slices.SortFunc(tables, func(a, b *schema.TableMetadata) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return tables
}

// AllNames returns all registered table names in order.
func (r *Registry) AllNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.names))
}

// GetAllTables returns every table, junction tables included, keyed by name.
func (r *Registry) GetAllTables() map[string]*schema.TableMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tables := make(map[string]*schema.TableMetadata, len(r.names)+len(r.junctions))
	maps.Copy(tables, r.names)
	maps.Copy(tables, r.junctions)
	return tables
}

// Ordered returns every table in creation order plus the foreign keys that
// must be added after all tables exist.
func (r *Registry) Ordered() ([]*schema.TableMetadata, []schema.DeferredForeignKey, error) {
	all := r.GetAllTables()
	tables := make([]*schema.TableMetadata, 0, len(all))
	for _, name := range slices.Sorted(maps.Keys(all)) {
		tables = append(tables, all[name])
	}
	return schema.SortTables(tables)
}

// Clear removes all registered models.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables = make(map[reflect.Type]*schema.TableMetadata)
	r.names = make(map[string]*schema.TableMetadata)
	r.junctions = make(map[string]*schema.TableMetadata)
}

// Has checks if a model type is registered.
func (r *Registry) Has(modelType reflect.Type) bool {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	_, ok := r.tables[modelType]
	r.mu.RUnlock()
	return ok
}

// HasTable checks if a table name is registered.
func (r *Registry) HasTable(tableName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.names[tableName]
	if !ok {
		_, ok = r.junctions[tableName]
	}
	return ok
}

// globalRegistry is the default global registry instance.
var globalRegistry = NewRegistry()

// Default returns the package-level registry.
func Default() *Registry {
	return globalRegistry
}

// Register registers a model in the global registry.
func Register(model any) error {
	return globalRegistry.Register(model)
}

// RegisterMetadata registers table metadata directly in the global registry.
func RegisterMetadata(table *schema.TableMetadata) error {
	return globalRegistry.RegisterMetadata(table)
}

// Get retrieves TableMetadata from the global registry.
func Get(modelType reflect.Type) (*schema.TableMetadata, error) {
	return globalRegistry.Get(modelType)
}

// GetByName retrieves TableMetadata by name from the global registry.
func GetByName(tableName string) (*schema.TableMetadata, error) {
	return globalRegistry.GetByName(tableName)
}

// GetOrRegister retrieves or registers a model in the global registry.
func GetOrRegister(model any) (*schema.TableMetadata, error) {
	return globalRegistry.GetOrRegister(model)
}

// All returns all registered tables from the global registry.
func All() []*schema.TableMetadata {
	return globalRegistry.All()
}

// AllTables returns all tables of the global registry as a map.
func AllTables() map[string]*schema.TableMetadata {
	return globalRegistry.GetAllTables()
}

// Ordered returns the global registry's tables in creation order.
func Ordered() ([]*schema.TableMetadata, []schema.DeferredForeignKey, error) {
	return globalRegistry.Ordered()
}

// Clear clears the global registry.
func Clear() {
	globalRegistry.Clear()
}
