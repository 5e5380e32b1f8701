package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document is an editable markdown document with a YAML header.
type Document struct {
	header *yaml.Node
	body   string
	has    bool
}

// Parse splits content into an editable header and body. Content without a
// header is returned as a Document whose HasFrontmatter is false; setting a
// key on it creates the header.
func Parse(content []byte) (*Document, error) {
	raw, body, ok := splitHeader(string(content))
	doc := &Document{
		header: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"},
		body:   body,
		has:    ok,
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return doc, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return doc, nil
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: header is not a mapping", ErrInvalid)
	}

	doc.header = root.Content[0]
	return doc, nil
}

// HasFrontmatter reports whether the parsed content carried a header.
func (d *Document) HasFrontmatter() bool {
	return d.has
}

// Body returns the markdown after the header.
func (d *Document) Body() string {
	return d.body
}

// Keys returns the header keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.header.Content)/2)
	for i := 0; i+1 < len(d.header.Content); i += 2 {
		keys = append(keys, d.header.Content[i].Value)
	}
	return keys
}

func (d *Document) lookup(key string) (int, *yaml.Node) {
	for i := 0; i+1 < len(d.header.Content); i += 2 {
		if d.header.Content[i].Value == key {
			return i, d.header.Content[i+1]
		}
	}
	return -1, nil
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, n := d.lookup(key)
	return n != nil
}

// String returns the scalar value of key, or "" when absent or not a
// scalar. Timestamps and numbers come back exactly as written.
func (d *Document) String(key string) string {
	_, n := d.lookup(key)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// List returns the value of key as a list: sequence items, or a single
// scalar split on commas.
func (d *Document) List(key string) []string {
	_, n := d.lookup(key)
	if n == nil {
		return nil
	}

	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode && strings.TrimSpace(item.Value) != "" {
				out = append(out, strings.TrimSpace(item.Value))
			}
		}
		return out
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return StringList(n.Value)
	default:
		return nil
	}
}

// Meta decodes the whole header into a Meta.
func (d *Document) Meta() (Meta, error) {
	m := Meta{}
	if len(d.header.Content) == 0 {
		return m, nil
	}
	if err := d.header.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return m, nil
}

// Set assigns value to key, replacing an existing entry in place or
// appending a new one. Slices are written in block style; empty slices as
// `[]`.
func (d *Document) Set(key string, value interface{}) error {
	var n yaml.Node
	if err := n.Encode(value); err != nil {
		return errors.Wrapf(err, "failed to encode value for %q", key)
	}
	if n.Kind == yaml.SequenceNode {
		n.Style = 0
		if len(n.Content) == 0 {
			n.Style = yaml.FlowStyle
		}
	}

	d.has = true
	if i, _ := d.lookup(key); i >= 0 {
		d.header.Content[i+1] = &n
		return nil
	}

	d.header.Content = append(d.header.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&n,
	)
	return nil
}

// Delete removes key; it reports whether the key existed.
func (d *Document) Delete(key string) bool {
	i, _ := d.lookup(key)
	if i < 0 {
		return false
	}
	d.header.Content = append(d.header.Content[:i], d.header.Content[i+2:]...)
	return true
}

// Bytes serialises the document: header, a blank line, then the body.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer

	if d.has {
		buf.WriteString(delimiter + "\n")
		if len(d.header.Content) > 0 {
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(d.header); err != nil {
				return nil, errors.Wrap(err, "failed to encode frontmatter")
			}
			if err := enc.Close(); err != nil {
				return nil, errors.Wrap(err, "failed to encode frontmatter")
			}
		}
		buf.WriteString(delimiter + "\n\n")
	}

	buf.WriteString(d.body)
	if d.body != "" && !strings.HasSuffix(d.body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}
