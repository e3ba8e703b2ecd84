package openapi

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

func (d *Document) schemaFor(example any) *openapi3.SchemaRef {
	d.mu.Lock()
	defer d.mu.Unlock()

	if example == nil {
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
	return d.schemaFromType(reflect.TypeOf(example), make(map[reflect.Type]bool))
}

func (d *Document) schemaFromType(t reflect.Type, visited map[reflect.Type]bool) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		inner := d.schemaFromType(t.Elem(), visited)
		if inner.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{inner}, Nullable: true}}
		}
		inner.Value.Nullable = true
		return inner
	}

	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()}
	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: openapi3.NewFloat64Schema()}
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()}
	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  &openapi3.Types{openapi3.TypeArray},
			Items: d.schemaFromType(t.Elem(), visited),
		}}
	case reflect.Map:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:                 &openapi3.Types{openapi3.TypeObject},
			AdditionalProperties: openapi3.AdditionalProperties{Schema: d.schemaFromType(t.Elem(), visited)},
		}}
	case reflect.Struct:
		return d.structSchema(t, visited)
	default:
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
}

// structSchema registers named structs as components and returns a reference.
func (d *Document) structSchema(t reflect.Type, visited map[reflect.Type]bool) *openapi3.SchemaRef {
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}
	}

	if t.Name() == "" || t.PkgPath() == "" {
		return &openapi3.SchemaRef{Value: d.buildStructSchema(t, visited)}
	}

	key := t.PkgPath() + "." + t.Name()
	if name, ok := d.schemas[key]; ok {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
	}

	name := d.componentName(t.Name())
	d.schemas[key] = name
	d.spec.Components.Schemas[name] = &openapi3.SchemaRef{Value: d.buildStructSchema(t, visited)}

	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func (d *Document) componentName(base string) string {
	name := base
	for suffix := 2; ; suffix++ {
		if _, taken := d.spec.Components.Schemas[name]; !taken {
			return name
		}
		name = base + strconv.Itoa(suffix)
	}
}

func (d *Document) buildStructSchema(t reflect.Type, visited map[reflect.Type]bool) *openapi3.Schema {
	if visited[t] {
		return openapi3.NewObjectSchema()
	}
	visited[t] = true
	defer delete(visited, t)

	schema := openapi3.NewObjectSchema()
	schema.Properties = make(openapi3.Schemas)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		parts := strings.Split(tag, ",")
		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}

		ref := d.schemaFromType(field.Type, visited)
		if ex := field.Tag.Get("example"); ex != "" && ref.Value != nil {
			ref.Value.Example = ex
		}
		schema.Properties[name] = ref

		optional := false
		for _, part := range parts[1:] {
			if part == "omitempty" {
				optional = true
			}
		}
		if !optional {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}
