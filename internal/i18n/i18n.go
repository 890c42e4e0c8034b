// Package i18n serves the ko and en page catalogs.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves dot-separated keys such as "discover.like".
// Unknown keys come back unchanged, so literal messages pass through.
type Translator interface {
	T(key string) string
	Tf(key string, args ...any) string
	Lang() string
}

// Manager holds one flat catalog per language.
type Manager struct {
	translations map[string]map[string]string
	defaultLang  string
}

// Load reads the embedded catalogs.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(embedded, "locales", defaultLang)
}

// LoadFS reads every YAML file of dir. Each file maps a language code to a tree
// of messages; files may add to the same language.
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Manager, error) {
	if defaultLang == "" {
		defaultLang = "ko"
	}

	names, err := fs.Glob(fsys, path.Join(dir, "*.y*ml"))
	if err != nil {
		return nil, fmt.Errorf("i18n: list %s: %w", dir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}

	m := &Manager{translations: make(map[string]map[string]string), defaultLang: defaultLang}
	for _, name := range names {
		if err := m.loadFile(fsys, name); err != nil {
			return nil, err
		}
	}

	if _, ok := m.translations[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}
	return m, nil
}

func (m *Manager) loadFile(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("i18n: read %s: %w", name, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("i18n: parse %s: %w", name, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("i18n: %s: top level must map languages to messages", name)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		lang := strings.ToLower(strings.TrimSpace(root.Content[i].Value))
		if lang == "" {
			continue
		}
		catalog := m.translations[lang]
		if catalog == nil {
			catalog = make(map[string]string)
			m.translations[lang] = catalog
		}
		collect("", root.Content[i+1], catalog)
	}
	return nil
}

// collect flattens nested mappings into dotted keys. Non-string leaves are skipped.
func collect(prefix string, node *yaml.Node, out map[string]string) {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" && node.Tag == "!!str" {
			out[prefix] = node.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			collect(key, node.Content[i+1], out)
		}
	}
}

// Translator returns a translator for lang, or for the default language when lang is unknown.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	lang = strings.ToLower(strings.TrimSpace(lang))
	if _, ok := m.translations[lang]; !ok {
		lang = m.defaultLang
	}

	return translator{
		lang:     lang,
		primary:  m.translations[lang],
		fallback: m.translations[m.defaultLang],
	}
}

// Negotiate picks the supported language with the highest q value of an
// Accept-Language header. Ties keep header order.
func (m *Manager) Negotiate(acceptLanguage string) string {
	if m == nil {
		return ""
	}

	best, bestQ := m.defaultLang, 0.0
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(tag)), "-")
		if _, ok := m.translations[base]; !ok {
			continue
		}

		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		if q > bestQ {
			best, bestQ = base, q
		}
	}
	return best
}

// Languages returns the loaded language codes in sorted order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	langs := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

type translator struct {
	lang     string
	primary  map[string]string
	fallback map[string]string
}

func (t translator) Lang() string { return t.lang }

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if v, ok := t.primary[key]; ok {
		return v
	}
	if v, ok := t.fallback[key]; ok {
		return v
	}
	return key
}

func (t translator) Tf(key string, args ...any) string {
	return fmt.Sprintf(t.T(key), args...)
}
