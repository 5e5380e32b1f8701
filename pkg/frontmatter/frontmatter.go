// Package frontmatter reads and edits the YAML header of markdown documents
// (agents, skills, commands and .spec files).
//
// Read-only consumers use ReadMeta, which goes through goldmark-meta exactly
// like the host tool's loaders do. Tools that rewrite documents use Parse,
// which keeps the header as an ordered yaml.v3 node so that untouched keys
// survive a round trip in their original order.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const delimiter = "---"

// ErrInvalid is wrapped by every header parse failure.
var ErrInvalid = errors.New("invalid frontmatter")

// Meta is the decoded header of a document.
type Meta map[string]interface{}

// String returns the value of key when it is a scalar, formatted as text.
func (m Meta) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []interface{}, map[interface{}]interface{}, map[string]interface{}:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Bool returns the value of key as a boolean. Strings "true"/"yes" count.
func (m Meta) Bool(key string) bool {
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "on":
			return true
		}
	}
	return false
}

// List returns the value of key as a string list. See StringList.
func (m Meta) List(key string) []string {
	return StringList(m[key])
}

// Has reports whether key is present, even with an empty value.
func (m Meta) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// ReadMeta parses the header of content with goldmark-meta and returns it
// together with the markdown body. A document without a header yields a nil
// Meta and the whole content as body.
func ReadMeta(content []byte) (Meta, string, error) {
	_, body, ok := splitHeader(string(content))
	if !ok {
		return nil, string(content), nil
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, "", errors.Wrap(err, "failed to parse markdown")
	}

	data, err := meta.TryGet(pctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return Meta(data), body, nil
}

// StringList normalises a header value into a list of strings. YAML
// sequences are converted item by item; a plain string is treated as a
// comma-separated list. Anything else yields nil.
func StringList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case string:
		var out []string
		for _, item := range strings.Split(t, ",") {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func hasHeader(content []byte) bool {
	first, _, _ := bytes.Cut(content, []byte("\n"))
	return strings.TrimRight(string(first), "\r ") == delimiter
}

// splitHeader separates the raw header text from the body. ok is false
// when the document has no complete header.
func splitHeader(content string) (string, string, bool) {
	if !hasHeader([]byte(content)) {
		return "", content, false
	}

	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r ") == delimiter {
			header := strings.Join(lines[1:i], "\n")
			body := strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\r\n")
			return header, body, true
		}
	}
	return "", content, false
}
