package seeding

import (
	"fmt"
	"strings"

	"schoolgenius-seeder/internal/domain/service"
)

// FieldType 输出字段的基本类型
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number"
	TypeBool        FieldType = "bool"
	TypeStringArray FieldType = "string_array"
	TypeArray       FieldType = "array"
	TypeObject      FieldType = "object"
)

// Field 输出字段约束
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Schema 输出结构约束，输出必须是 JSON 对象
type Schema struct {
	Fields []Field
}

// Required 快捷构造必填字段
func Required(name string, t FieldType) Field {
	return Field{Name: name, Type: t, Required: true}
}

// Optional 快捷构造可选字段
func Optional(name string, t FieldType) Field {
	return Field{Name: name, Type: t}
}

// SchemaValidationError 输出不满足 Schema
type SchemaValidationError struct {
	Problems []string
}

func (e *SchemaValidationError) Error() string {
	return "output schema validation failed: " + strings.Join(e.Problems, "; ")
}

// Validate 校验结构化输出并返回对象形式的载荷
func (s Schema) Validate(out service.StructuredOutput) (map[string]any, error) {
	obj, ok := out.Object()
	if !ok {
		return nil, &SchemaValidationError{Problems: []string{fmt.Sprintf("expected a JSON object, got %s", kindOf(out.Value))}}
	}

	var problems []string
	for _, f := range s.Fields {
		v, present := obj[f.Name]
		if !present || v == nil {
			if f.Required {
				problems = append(problems, fmt.Sprintf("missing required field %q", f.Name))
			}
			continue
		}
		if !matches(f.Type, v) {
			problems = append(problems, fmt.Sprintf("field %q: expected %s, got %s", f.Name, f.Type, kindOf(v)))
			continue
		}
		if f.Required && f.Type == TypeString && strings.TrimSpace(v.(string)) == "" {
			problems = append(problems, fmt.Sprintf("field %q is empty", f.Name))
		}
	}
	if len(problems) > 0 {
		return nil, &SchemaValidationError{Problems: problems}
	}
	return obj, nil
}

func matches(t FieldType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeStringArray:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
