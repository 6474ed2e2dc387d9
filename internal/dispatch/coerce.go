package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var errNotCoercible = errors.New("value is not coercible")

// coerce converts a raw argument into the canonical Go representation of the
// parameter's type: string, bool, int64, float64, []string,
// map[string]string, map[string][]string or []map[string]any.
func coerce(p ParameterSpec, raw any) (any, error) {
	switch p.Type {
	case TypeString:
		return coerceString(raw)
	case TypeBoolean:
		return coerceBool(raw)
	case TypeInteger:
		return coerceInt(raw)
	case TypeDouble:
		return coerceFloat(raw)
	case TypeEnum:
		s, err := coerceString(raw)
		if err != nil {
			return nil, err
		}
		for _, v := range p.Values {
			if strings.EqualFold(v, strings.TrimSpace(s)) {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(p.Values, ", "))
	case TypeStringList:
		return coerceStringList(raw)
	case TypeStringMap:
		return coerceStringMap(raw)
	case TypeStringListMap:
		return coerceStringListMap(raw)
	case TypeObjectList:
		return coerceObjectList(raw)
	}
	return nil, fmt.Errorf("unsupported parameter type %s", p.Type)
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool, int, int32, int64, float32, float64, json.Number:
		return fmt.Sprint(v), nil
	}
	return "", errNotCoercible
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, errNotCoercible
		}
		return b, nil
	}
	return false, errNotCoercible
}

// coerceInt accepts whole numbers within the 32-bit range of the service's
// integer members.
func coerceInt(raw any) (int64, error) {
	n, err := wholeNumber(raw)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%d is out of range for a 32-bit integer", n)
	}
	return n, nil
}

func wholeNumber(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is out of range for an integer", v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, errNotCoercible
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errNotCoercible
		}
		return n, nil
	}
	return 0, errNotCoercible
}

func coerceFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errNotCoercible
		}
		return f, nil
	}
	return 0, errNotCoercible
}

func coerceStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return append([]string{}, v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := coerceString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errNotCoercible
}

func coerceStringMap(raw any) (map[string]string, error) {
	m, err := asMap(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, item := range m {
		s, err := coerceString(item)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func coerceStringListMap(raw any) (map[string][]string, error) {
	m, err := asMap(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(m))
	for k, item := range m {
		l, err := coerceStringList(item)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		out[k] = l
	}
	return out, nil
}

func coerceObjectList(raw any) ([]map[string]any, error) {
	if s, ok := raw.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		raw = decoded
	}

	switch v := raw.(type) {
	case []map[string]any:
		return append([]map[string]any{}, v...), nil
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d is not an object", i)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, errNotCoercible
}

// asMap accepts any map keyed by strings, or a JSON object encoded as a string.
func asMap(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		return decoded, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, errNotCoercible
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}
