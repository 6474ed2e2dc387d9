package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-openapi/swag/mangling"
	"github.com/spf13/pflag"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

// reservedFlags are owned by the CLI itself. A parameter whose flag name
// collides with one is registered as --param-<name> instead.
var reservedFlags = map[string]bool{
	"help":           true,
	"verbose":        true,
	"format":         true,
	"region":         true,
	"endpoint-url":   true,
	"profile":        true,
	"dry-run":        true,
	"force":          true,
	"select":         true,
	"stdin":          true,
	"cli-input-json": true,
}

// flagNames splits parameter names on case changes and underscores. GPS is
// added so GPSPoint stays one word.
var flagNames = mangling.NewNameMangler(mangling.WithAdditionalInitialisms("GPS"))

// FlagName converts a parameter name such as GPSPoint_RangeInKilometer into
// its kebab-case flag name, gps-point-range-in-kilometer.
func FlagName(name string) string {
	return flagNames.ToCommandName(name)
}

// parameterFlag links one command-line flag to the parameter name or alias
// handed to the binder.
type parameterFlag struct {
	flag string
	name string
	spec dispatch.ParameterSpec
}

// registerParameterFlags adds one flag per parameter, plus a hidden flag per
// alias, to fs.
func registerParameterFlags(fs *pflag.FlagSet, desc *dispatch.Descriptor) []parameterFlag {
	var out []parameterFlag
	for _, p := range desc.Parameters {
		names := append([]string{p.Name}, p.Aliases...)
		for i, name := range names {
			flag := FlagName(name)
			if reservedFlags[flag] {
				flag = "param-" + flag
			}
			if fs.Lookup(flag) != nil {
				continue
			}
			addParameterFlag(fs, flag, p)
			if i > 0 {
				_ = fs.MarkHidden(flag)
			}
			out = append(out, parameterFlag{flag: flag, name: name, spec: p})
		}
	}
	return out
}

func addParameterFlag(fs *pflag.FlagSet, flag string, p dispatch.ParameterSpec) {
	usage := p.Description
	switch p.Type {
	case dispatch.TypeBoolean:
		fs.Bool(flag, false, usage)
	case dispatch.TypeInteger:
		fs.Int64(flag, 0, usage)
	case dispatch.TypeDouble:
		fs.Float64(flag, 0, usage)
	case dispatch.TypeEnum:
		fs.String(flag, "", strings.TrimSpace(usage+" ("+strings.Join(p.Values, "|")+")"))
	case dispatch.TypeStringList:
		fs.StringSlice(flag, nil, usage)
	case dispatch.TypeStringMap:
		fs.StringToString(flag, nil, strings.TrimSpace(usage+" (key=value,...)"))
	case dispatch.TypeStringListMap:
		fs.StringArray(flag, nil, strings.TrimSpace(usage+" (key=value1,value2; repeatable)"))
	case dispatch.TypeObjectList:
		fs.StringArray(flag, nil, strings.TrimSpace(usage+" (JSON object; repeatable)"))
	default:
		fs.String(flag, "", usage)
	}
}

// namedArgs collects the flags the caller actually set. Unset flags are not
// supplied, whatever their zero value.
func namedArgs(fs *pflag.FlagSet, flags []parameterFlag) (map[string]any, error) {
	named := make(map[string]any)
	for _, f := range flags {
		if !fs.Changed(f.flag) {
			continue
		}
		v, err := flagValue(fs, f)
		if err != nil {
			return nil, usageError(fmt.Sprintf("invalid --%s value", f.flag), err)
		}
		named[f.name] = v
	}
	return named, nil
}

func flagValue(fs *pflag.FlagSet, f parameterFlag) (any, error) {
	switch f.spec.Type {
	case dispatch.TypeBoolean:
		return fs.GetBool(f.flag)
	case dispatch.TypeInteger:
		return fs.GetInt64(f.flag)
	case dispatch.TypeDouble:
		return fs.GetFloat64(f.flag)
	case dispatch.TypeStringList:
		return fs.GetStringSlice(f.flag)
	case dispatch.TypeStringMap:
		return fs.GetStringToString(f.flag)
	case dispatch.TypeStringListMap:
		entries, err := fs.GetStringArray(f.flag)
		if err != nil {
			return nil, err
		}
		return parseListMap(entries)
	case dispatch.TypeObjectList:
		entries, err := fs.GetStringArray(f.flag)
		if err != nil {
			return nil, err
		}
		objs := make([]any, 0, len(entries))
		for _, e := range entries {
			var obj map[string]any
			if err := json.Unmarshal([]byte(e), &obj); err != nil {
				return nil, fmt.Errorf("expected a JSON object: %w", err)
			}
			objs = append(objs, obj)
		}
		return objs, nil
	}
	return fs.GetString(f.flag)
}

// parseListMap turns repeated key=v1,v2 entries into a map of lists. A key
// given more than once accumulates values.
func parseListMap(entries []string) (map[string][]string, error) {
	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%q is not key=value", e)
		}
		k = strings.TrimSpace(k)
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out[k] = append(out[k], item)
			}
		}
		if _, ok := out[k]; !ok {
			out[k] = []string{}
		}
	}
	return out, nil
}
