package finding

import (
	"sort"
	"strings"
)

// Tag is a resource tag in canonical Key/Value form.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// DefaultEnvironments are the environment values HasEnvironmentTag matches when none are given.
var DefaultEnvironments = []string{"prod", "production", "staging", "stage", "dev", "development", "test"}

var environmentKeys = map[string]bool{
	"environment": true,
	"env":         true,
	"stage":       true,
	"tier":        true,
}

// NormalizeTags converts the tag shapes providers return into []Tag. Lists of
// Key/Value, key/value or Name/Value entries are accepted, as are plain maps.
// Map input is returned sorted by key. Unrecognized entries are dropped.
func NormalizeTags(raw any) []Tag {
	switch v := raw.(type) {
	case nil:
		return nil
	case []Tag:
		return v
	case map[string]string:
		tags := make([]Tag, 0, len(v))
		for k, val := range v {
			tags = append(tags, Tag{Key: k, Value: val})
		}
		sortTags(tags)
		return tags
	case map[string]any:
		tags := make([]Tag, 0, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				tags = append(tags, Tag{Key: k, Value: s})
			}
		}
		sortTags(tags)
		return tags
	case []map[string]any:
		tags := make([]Tag, 0, len(v))
		for _, entry := range v {
			if t, ok := tagFromEntry(entry); ok {
				tags = append(tags, t)
			}
		}
		return tags
	case []any:
		tags := make([]Tag, 0, len(v))
		for _, e := range v {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := tagFromEntry(entry); ok {
				tags = append(tags, t)
			}
		}
		return tags
	default:
		return nil
	}
}

func tagFromEntry(entry map[string]any) (Tag, bool) {
	pairs := [][2]string{{"Key", "Value"}, {"key", "value"}, {"Name", "Value"}}
	for _, p := range pairs {
		k, kok := entry[p[0]].(string)
		v, vok := entry[p[1]].(string)
		if kok && vok {
			return Tag{Key: k, Value: v}, true
		}
	}
	return Tag{}, false
}

func sortTags(tags []Tag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
}

// TagValue returns the value of the first tag with the given key.
func TagValue(tags []Tag, key string) (string, bool) {
	for _, t := range tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// FilterByTag keeps findings carrying the tag key. When values is non-empty the
// tag value must also be one of them.
func FilterByTag(findings []Finding, key string, values []string) []Finding {
	var out []Finding
	for _, f := range findings {
		v, ok := TagValue(f.Tags, key)
		if !ok {
			continue
		}
		if len(values) == 0 || contains(values, v) {
			out = append(out, f)
		}
	}
	return out
}

// HasEnvironmentTag reports whether an Environment, Env, Stage or Tier tag
// matches one of envs, case-insensitively. Nil envs means DefaultEnvironments.
func HasEnvironmentTag(tags []Tag, envs []string) bool {
	if envs == nil {
		envs = DefaultEnvironments
	}
	for _, t := range tags {
		if !environmentKeys[strings.ToLower(t.Key)] {
			continue
		}
		for _, e := range envs {
			if strings.EqualFold(t.Value, e) {
				return true
			}
		}
	}
	return false
}

// MatchesExclude reports whether any tag matches the exclusion map.
// An empty exclusion value matches on key alone.
func MatchesExclude(tags []Tag, exclude map[string]string) bool {
	if len(exclude) == 0 {
		return false
	}
	for _, t := range tags {
		want, ok := exclude[t.Key]
		if !ok {
			continue
		}
		if want == "" || want == t.Value {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
