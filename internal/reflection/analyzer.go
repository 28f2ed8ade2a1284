package reflection

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

var (
	errType     = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Analyzer performs reflection-based analysis of constructors and types.
// It caches analysis results for performance.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[uintptr]*ConstructorInfo
}

// ConstructorInfo contains analyzed information about a constructor or factory function.
type ConstructorInfo struct {
	Type reflect.Type

	// Parameters excludes a leading context.Context parameter.
	Parameters []ParameterInfo

	// Result is the produced type (first return value).
	Result reflect.Type

	TakesContext   bool // First parameter is context.Context
	HasErrorReturn bool // Returns error as last value
	Variadic       bool

	// Fields holds the injectable fields of the struct Result points to.
	Fields []FieldInfo
}

// ParameterInfo describes a constructor parameter.
type ParameterInfo struct {
	Type  reflect.Type
	Index int // Index among injected parameters (context excluded)
}

// FieldInfo describes a struct field tagged for injection.
type FieldInfo struct {
	Name     string
	Type     reflect.Type
	Index    []int
	Token    string // From inject:"token"; empty means the field type
	Optional bool   // From optional:"true"
	Forward  bool   // From forward:"true"
}

// TagInfo contains parsed struct tag information.
type TagInfo struct {
	Inject   bool
	Token    string
	Optional bool
	Forward  bool
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache: make(map[uintptr]*ConstructorInfo),
	}
}

// Analyze analyzes a constructor function and extracts dependency information.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if val.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %T", constructor)
	}
	if val.IsNil() {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	// Closures and reflect.MakeFunc functions share a code pointer. Only the
	// shape is cached; callers invoke their own function value.
	cacheKey := val.Pointer()
	a.mu.RLock()
	if cached, ok := a.cache[cacheKey]; ok && cached.Type == val.Type() {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	info := &ConstructorInfo{
		Type:     val.Type(),
		Variadic: val.Type().IsVariadic(),
	}
	if info.Variadic {
		return nil, fmt.Errorf("variadic constructor %s is not supported", info.Type)
	}

	a.analyzeParameters(info)

	if err := a.analyzeReturns(info); err != nil {
		return nil, err
	}

	fields, err := a.AnalyzeFields(info.Result)
	if err != nil {
		return nil, err
	}
	info.Fields = fields

	a.mu.Lock()
	a.cache[cacheKey] = info
	a.mu.Unlock()

	return info, nil
}

// analyzeParameters records the parameter types, skipping a leading context.
func (a *Analyzer) analyzeParameters(info *ConstructorInfo) {
	fnType := info.Type
	start := 0
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		info.TakesContext = true
		start = 1
	}

	info.Parameters = make([]ParameterInfo, 0, fnType.NumIn()-start)
	for i := start; i < fnType.NumIn(); i++ {
		info.Parameters = append(info.Parameters, ParameterInfo{
			Type:  fnType.In(i),
			Index: i - start,
		})
	}
}

// analyzeReturns accepts (T) or (T, error).
func (a *Analyzer) analyzeReturns(info *ConstructorInfo) error {
	fnType := info.Type

	switch fnType.NumOut() {
	case 1:
		if implementsError(fnType.Out(0)) && fnType.Out(0).Kind() == reflect.Interface {
			return fmt.Errorf("constructor %s only returns error", fnType)
		}
		info.Result = fnType.Out(0)
	case 2:
		if !implementsError(fnType.Out(1)) {
			return fmt.Errorf("second return value of %s must be error, got %s", fnType, fnType.Out(1))
		}
		info.Result = fnType.Out(0)
		info.HasErrorReturn = true
	default:
		return fmt.Errorf("constructor %s must return (T) or (T, error)", fnType)
	}

	return nil
}

// AnalyzeFields returns the injectable fields of t, which must be a pointer to a struct
// for any field to be reported.
func (a *Analyzer) AnalyzeFields(t reflect.Type) ([]FieldInfo, error) {
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, nil
	}

	structType := t.Elem()
	var fields []FieldInfo
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		tagInfo := a.parseFieldTags(field.Tag)
		if !tagInfo.Inject {
			continue
		}

		if !field.IsExported() {
			return nil, fmt.Errorf("unexported field %q of %s cannot be injected, did you mean to export it?", field.Name, structType)
		}

		fields = append(fields, FieldInfo{
			Name:     field.Name,
			Type:     field.Type,
			Index:    field.Index,
			Token:    tagInfo.Token,
			Optional: tagInfo.Optional,
			Forward:  tagInfo.Forward,
		})
	}

	return fields, nil
}

// parseFieldTags parses struct field tags for DI-specific annotations.
func (a *Analyzer) parseFieldTags(tag reflect.StructTag) TagInfo {
	info := TagInfo{}

	val, ok := tag.Lookup("inject")
	if !ok || val == "-" {
		return info
	}
	info.Inject = true
	info.Token = val

	if val, ok := tag.Lookup("optional"); ok {
		info.Optional = val == "true"
	}

	if val, ok := tag.Lookup("forward"); ok {
		info.Forward = val == "true"
	}

	return info
}

// Clear clears the analysis cache.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	a.cache = make(map[uintptr]*ConstructorInfo)
	a.mu.Unlock()
}

// CacheSize returns the number of cached analyses.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

// IsStructPointer reports whether t is a pointer to a struct.
func IsStructPointer(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

// implementsError checks if a type implements the error interface.
func implementsError(t reflect.Type) bool {
	return t.Implements(errType)
}
