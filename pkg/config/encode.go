package config

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const redacted = "********"

var durationType = reflect.TypeOf(time.Duration(0))

// Marshal renders cfg as YAML in field order. Durations are written in Go
// syntax ("30s") rather than as nanosecond integers, so the output loads
// back unchanged.
func Marshal(cfg *Config) ([]byte, error) {
	node, err := encodeNode(reflect.ValueOf(cfg).Elem())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Redacted returns a copy of cfg with secrets masked, for display.
func Redacted(cfg *Config) *Config {
	out := *cfg
	if out.Directory.BindPassword != "" {
		out.Directory.BindPassword = redacted
	}
	if out.Server.JWT.Secret != "" {
		out.Server.JWT.Secret = redacted
	}
	out.Directory.Attributes = append([]string(nil), cfg.Directory.Attributes...)
	out.Telemetry.Profiling.ProfileTypes = append([]string(nil), cfg.Telemetry.Profiling.ProfileTypes...)
	return &out
}

func encodeNode(v reflect.Value) (*yaml.Node, error) {
	if v.Type() == durationType {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: time.Duration(v.Int()).String()}, nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
		}
		return encodeNode(v.Elem())

	case reflect.Struct:
		node := &yaml.Node{Kind: yaml.MappingNode}
		t := v.Type()
		for i := range t.NumField() {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, omitEmpty := yamlName(field)
			if name == "-" {
				continue
			}
			fv := v.Field(i)
			if omitEmpty && fv.IsZero() {
				continue
			}
			child, err := encodeNode(fv)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: name},
				child,
			)
		}
		return node, nil

	case reflect.Slice, reflect.Array:
		node := &yaml.Node{Kind: yaml.SequenceNode}
		if v.Len() == 0 {
			node.Style = yaml.FlowStyle
		}
		for i := range v.Len() {
			child, err := encodeNode(v.Index(i))
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil

	case reflect.Map:
		node := &yaml.Node{Kind: yaml.MappingNode}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			child, err := encodeNode(v.MapIndex(k))
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(k.Interface())},
				child,
			)
		}
		return node, nil

	default:
		node := &yaml.Node{}
		if err := node.Encode(v.Interface()); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", v.Type(), err)
		}
		return node, nil
	}
}

// yamlName returns the key for field and whether it carries omitempty.
func yamlName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("yaml")
	if tag == "" {
		return strings.ToLower(field.Name), false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	return name, strings.Contains(opts, "omitempty")
}
