package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Properties is an ordered Java-style .properties file (spec.md §6):
// connections.properties and app.properties both use this grammar.
type Properties struct {
	keys   []string
	values map[string]string
}

// NewProperties returns an empty, insertion-ordered property set.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set inserts or updates key, preserving first-insertion order.
func (p *Properties) Set(key, value string) {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// LoadProperties parses a Java-style .properties file: backslash
// line-continuation, `=`/`:` as key-value separators, `#`/`!` comment
// lines, and `\uXXXX` unicode escapes (spec.md §6).
func LoadProperties(path string) (*Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	props := NewProperties()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var logical strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if logical.Len() == 0 {
			trimmed := strings.TrimLeft(line, " \t")
			if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!") {
				continue
			}
		}
		logical.WriteString(line)

		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			// Line continues: drop the trailing backslash and keep reading.
			s := logical.String()
			logical.Reset()
			logical.WriteString(s[:len(s)-1])
			continue
		}

		key, value, ok := splitPropertyLine(logical.String())
		logical.Reset()
		if !ok {
			continue
		}
		props.Set(key, unescapePropertyValue(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return props, nil
}

// splitPropertyLine finds the first unescaped '=' or ':' separator.
func splitPropertyLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return "", "", false
	}

	escaped := false
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '=' || c == ':' {
			return strings.TrimSpace(unescapePropertyKey(trimmed[:i])), strings.TrimLeft(trimmed[i+1:], " \t"), true
		}
	}
	// No separator: the whole line is the key, with an empty value.
	return strings.TrimSpace(unescapePropertyKey(trimmed)), "", true
}

func unescapePropertyKey(s string) string {
	return strings.NewReplacer(`\=`, "=", `\:`, ":", `\ `, " ").Replace(s)
}

// unescapePropertyValue reverses the `=`/`:`/`#`/`!`/`\uXXXX` escaping
// spec.md §6 requires values to carry.
func unescapePropertyValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		switch next {
		case '=', ':', '#', '!', '\\', ' ':
			b.WriteByte(next)
			i++
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case 'u':
			if i+5 < len(s) {
				if code, err := strconv.ParseUint(s[i+2:i+6], 16, 32); err == nil {
					b.WriteRune(rune(code))
					i += 5
					continue
				}
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func escapePropertyValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '=', ':', '#', '!', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r > 127 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Save writes props back out in the same grammar, in insertion order.
func (p *Properties) Save(path string) error {
	var b strings.Builder
	for _, k := range p.keys {
		fmt.Fprintf(&b, "%s=%s\n", escapePropertyValue(k), escapePropertyValue(p.values[k]))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ConnectionEntry is one conn.<i>.* group decoded out of
// connections.properties (spec.md §6).
type ConnectionEntry struct {
	Name        string
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	Charset     string
	Collation   string
	TimeoutSec  int
	SSLMode     string
	SSLCAPath   string
	SSLCertPath string
	SSLKeyPath  string
}

// DecodeConnections reads the `count` / `conn.<i>.*` grouping from a
// loaded connections.properties file.
func DecodeConnections(props *Properties) ([]ConnectionEntry, error) {
	countStr, ok := props.Get("count")
	if !ok {
		return nil, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil {
		return nil, fmt.Errorf("config: invalid count %q: %w", countStr, err)
	}

	entries := make([]ConnectionEntry, 0, count)
	for i := 0; i < count; i++ {
		prefix := fmt.Sprintf("conn.%d.", i)
		get := func(field string) string {
			v, _ := props.Get(prefix + field)
			return v
		}
		port, _ := strconv.Atoi(get("port"))
		timeout, _ := strconv.Atoi(get("timeout"))
		entries = append(entries, ConnectionEntry{
			Name:        get("name"),
			Host:        get("host"),
			Port:        port,
			User:        get("user"),
			Password:    get("pwd"),
			Database:    get("db"),
			Charset:     get("charset"),
			Collation:   get("collation"),
			TimeoutSec:  timeout,
			SSLMode:     get("sslMode"),
			SSLCAPath:   get("sslCaPath"),
			SSLCertPath: get("sslCertPath"),
			SSLKeyPath:  get("sslKeyPath"),
		})
	}
	return entries, nil
}

// EncodeConnections serializes entries back into the `count` /
// `conn.<i>.*` grouping connections.properties expects.
func EncodeConnections(entries []ConnectionEntry) *Properties {
	props := NewProperties()
	props.Set("count", strconv.Itoa(len(entries)))
	for i, e := range entries {
		prefix := fmt.Sprintf("conn.%d.", i)
		props.Set(prefix+"name", e.Name)
		props.Set(prefix+"host", e.Host)
		props.Set(prefix+"port", strconv.Itoa(e.Port))
		props.Set(prefix+"user", e.User)
		props.Set(prefix+"pwd", e.Password)
		props.Set(prefix+"db", e.Database)
		props.Set(prefix+"charset", e.Charset)
		props.Set(prefix+"collation", e.Collation)
		props.Set(prefix+"timeout", strconv.Itoa(e.TimeoutSec))
		props.Set(prefix+"sslMode", e.SSLMode)
		props.Set(prefix+"sslCaPath", e.SSLCAPath)
		props.Set(prefix+"sslCertPath", e.SSLCertPath)
		props.Set(prefix+"sslKeyPath", e.SSLKeyPath)
	}
	return props
}

// FavoriteItem is one entry of favorites.dat's JSON array (spec.md §6).
type FavoriteItem struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// LoadFavorites parses favorites.dat — a plain JSON array, unlike the
// two .properties files.
func LoadFavorites(path string) ([]FavoriteItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var items []FavoriteItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return items, nil
}

// SaveFavorites writes items back out as a JSON array.
func SaveFavorites(path string, items []FavoriteItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Keys returns the property keys in insertion order, for tests and
// diagnostics that need a stable listing.
func (p *Properties) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}
