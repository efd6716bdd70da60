package domain

import (
	"fmt"
	"strings"
)

// Tag is a named string attribute attached to a spawn or write request.
type Tag struct {
	Name  string `json:"name" yaml:"name" mapstructure:"name"`
	Value string `json:"value" yaml:"value" mapstructure:"value"`
}

// Tags is an ordered tag set. Duplicate names are allowed.
type Tags []Tag

// Flatten merges the tags into a copy of base. Later tags win over earlier
// ones and over keys already present in base.
func (t Tags) Flatten(base map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(t))
	for k, v := range base {
		out[k] = v
	}
	for _, tag := range t {
		out[tag.Name] = tag.Value
	}
	return out
}

// Get returns the value of the last tag with the given name.
func (t Tags) Get(name string) (string, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Name == name {
			return t[i].Value, true
		}
	}
	return "", false
}

// Validate rejects tags without a name.
func (t Tags) Validate() error {
	for i, tag := range t {
		if strings.TrimSpace(tag.Name) == "" {
			return fmt.Errorf("%w: tag[%d] has an empty name", ErrInvalidRequest, i)
		}
	}
	return nil
}

// ParseTag reads a "Name=Value" pair.
func ParseTag(raw string) (Tag, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return Tag{}, fmt.Errorf("%w: tag %q must look like Name=Value", ErrInvalidRequest, raw)
	}
	return Tag{Name: strings.TrimSpace(name), Value: value}, nil
}

// ParseTags reads a list of "Name=Value" pairs, keeping their order.
func ParseTags(raw []string) (Tags, error) {
	tags := make(Tags, 0, len(raw))
	for _, r := range raw {
		tag, err := ParseTag(r)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
