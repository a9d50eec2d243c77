package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

// validator 按工具名缓存编译后的 JSON Schema
type validator struct {
	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
}

func newValidator() *validator {
	return &validator{schemas: make(map[string]*gojsonschema.Schema)}
}

func (v *validator) forget(name string) {
	v.mu.Lock()
	delete(v.schemas, name)
	v.mu.Unlock()
}

func (v *validator) compiled(t tool.Tool) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.schemas[t.Name()]; ok {
		return s, nil
	}
	raw, err := json.Marshal(t.Schema())
	if err != nil {
		return nil, err
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t.Name(), err)
	}
	v.schemas[t.Name()] = s
	return s, nil
}

// validate 校验参数；返回的 error 包装 errors.ErrInvalidArg
func (v *validator) validate(t tool.Tool, args map[string]any) error {
	schema, err := v.compiled(t)
	if err != nil {
		return err
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidArg, "validate %s arguments: %v", t.Name(), err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.Wrapf(errors.ErrInvalidArg, "%s: %s", t.Name(), strings.Join(msgs, "; "))
}

// conform 将文本协议解析出的标量按 Schema 声明的类型做宽松转换：
// 纯数字字符串已被解析为 int，若属性声明为 string 则还原；声明为 integer/number 的字符串尝试解析。
func conform(schema tool.Schema, args map[string]any) map[string]any {
	if len(args) == 0 || len(schema.Properties) == 0 {
		return args
	}
	out := make(map[string]any, len(args))
	for k, val := range args {
		prop, ok := schema.Properties[k]
		if !ok {
			out[k] = val
			continue
		}
		out[k] = conformValue(prop.Type, val)
	}
	return out
}

func conformValue(typ string, val any) any {
	switch typ {
	case "string":
		switch n := val.(type) {
		case int:
			return strconv.Itoa(n)
		case int64:
			return strconv.FormatInt(n, 10)
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(n)
		}
	case "integer":
		if s, ok := val.(string); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return n
			}
		}
		if f, ok := val.(float64); ok && f == float64(int64(f)) {
			return int(f)
		}
	case "number":
		if s, ok := val.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case "boolean":
		if s, ok := val.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
	}
	return val
}
