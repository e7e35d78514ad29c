// Package out renders result envelopes. JSON is the default; plain mode
// prints one key=value line per record for shell pipelines.
package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/config"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/model"
)

func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	switch {
	case settings.OutputMode == "json" && settings.ResultsOnly:
		return writeJSON(w, data)
	case settings.OutputMode == "json":
		env.Data = data
		return writeJSON(w, env)
	case settings.ResultsOnly:
		return renderPlain(w, records(data))
	}

	head := map[string]any{
		"success": env.Success,
		"command": env.Meta.Command,
		"cache":   env.Meta.Cache.Status,
	}
	if env.Meta.ChainID != "" {
		head["chain_id"] = env.Meta.ChainID
	}
	if len(env.Warnings) > 0 {
		head["warnings"] = env.Warnings
	}
	if env.Error != nil {
		head["code"] = env.Error.Code
		head["message"] = env.Error.Message
		if len(env.Error.Details) > 0 {
			head["details"] = env.Error.Details
		}
		return renderPlain(w, []any{head})
	}
	return renderPlain(w, append([]any{head}, records(data)...))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// records splits data into the lines plain mode prints. A query result
// whose payload holds exactly one list (plus pagination) prints one line
// per list element.
func records(data any) []any {
	switch t := normalizeValue(data).(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		if result, ok := t["result"].(map[string]any); ok {
			if list, ok := soleList(result); ok {
				return list
			}
		}
		return []any{t}
	default:
		return []any{t}
	}
}

func soleList(m map[string]any) ([]any, bool) {
	var found []any
	count := 0
	for k, v := range m {
		if k == "pagination" {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, false
		}
		found = list
		count++
	}
	return found, count == 1
}

func renderPlain(w io.Writer, lines []any) error {
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, "[]")
		return err
	}
	for _, item := range lines {
		line, err := toLine(item)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// project keeps only the selected fields. A field may be a dotted path such
// as result.balance.amount; numeric parts index lists and other parts fan
// out over lists, so result.validators.operator_address collects one value
// per validator. Projected values keep the full path as key.
func project(data any, fields []string) any {
	n := normalizeValue(data)
	switch t := n.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, projectMap(m, fields))
		}
		return out
	case map[string]any:
		return projectMap(t, fields)
	default:
		return n
	}
}

func projectMap(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := lookupPath(m, f); ok {
			out[f] = v
		}
	}
	return out
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if v, ok := m[path]; ok {
		return v, true
	}
	return walkPath(m, strings.Split(path, "."))
}

func walkPath(cur any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return cur, true
	}
	part := parts[0]
	switch t := cur.(type) {
	case map[string]any:
		next, ok := t[part]
		if !ok {
			return nil, false
		}
		return walkPath(next, parts[1:])
	case []any:
		if idx, err := strconv.Atoi(part); err == nil {
			if idx < 0 || idx >= len(t) {
				return nil, false
			}
			return walkPath(t[idx], parts[1:])
		}
		collected := make([]any, 0, len(t))
		for _, item := range t {
			if v, ok := walkPath(item, parts); ok {
				collected = append(collected, v)
			}
		}
		return collected, len(collected) > 0
	default:
		return nil, false
	}
}

func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

// toLine prints a record as sorted key=value pairs. Nested objects are
// flattened to dotted keys; lists stay compact JSON.
func toLine(v any) (string, error) {
	m, ok := normalizeValue(v).(map[string]any)
	if !ok {
		buf, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
	flat := map[string]string{}
	if err := flatten("", m, flat); err != nil {
		return "", err
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+flat[k])
	}
	return strings.Join(parts, " "), nil
}

func flatten(prefix string, m map[string]any, dst map[string]string) error {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			if len(t) == 0 {
				dst[key] = "{}"
				continue
			}
			if err := flatten(key, t, dst); err != nil {
				return err
			}
		case []any:
			buf, err := json.Marshal(t)
			if err != nil {
				return err
			}
			dst[key] = string(buf)
		case string:
			dst[key] = t
		case nil:
			dst[key] = "null"
		default:
			dst[key] = fmt.Sprintf("%v", t)
		}
	}
	return nil
}
