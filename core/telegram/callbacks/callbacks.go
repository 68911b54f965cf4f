package callbacks

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback data uses a colon-delimited grammar: <handler>:<p1>:<p2>...
// Handler names are case-insensitive. Params may be empty strings but
// must never contain the delimiter themselves.

const (
	sep = ":"
	// MaxDataLen is the Bot API limit for callback data bytes.
	MaxDataLen = 64
)

// Data is a parsed callback payload.
type Data struct {
	Name   string
	Params Params
}

// Params gives positional, typed access to callback parameters.
type Params []string

func (p Params) String(i int) (string, error) {
	if i < 0 || i >= len(p) {
		return "", fmt.Errorf("callbacks: missing param %d", i)
	}
	return p[i], nil
}

func (p Params) Int(i int) (int, error) {
	s, err := p.String(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("callbacks: param %d is not an int: %q", i, s)
	}
	return n, nil
}

func (p Params) Int64(i int) (int64, error) {
	s, err := p.String(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callbacks: param %d is not an int64: %q", i, s)
	}
	return n, nil
}

// Parse splits raw callback data into handler name and params. The
// telebot prefix byte is stripped if present. An empty handler name is
// an error; zero params is fine.
func Parse(raw string) (Data, error) {
	raw = strings.TrimPrefix(raw, "\f")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Data{}, fmt.Errorf("callbacks: empty data")
	}
	parts := strings.Split(raw, sep)
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	if name == "" {
		return Data{}, fmt.Errorf("callbacks: empty handler name in %q", raw)
	}
	return Data{Name: name, Params: Params(parts[1:])}, nil
}

// Build assembles callback data from a handler name and params,
// enforcing the delimiter rule and the Bot API length limit.
func Build(name string, params ...string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("callbacks: empty handler name")
	}
	if strings.Contains(name, sep) {
		return "", fmt.Errorf("callbacks: handler name %q contains delimiter", name)
	}
	for i, p := range params {
		if strings.Contains(p, sep) {
			return "", fmt.Errorf("callbacks: param %d contains delimiter: %q", i, p)
		}
	}
	data := name
	if len(params) > 0 {
		data += sep + strings.Join(params, sep)
	}
	if len(data) > MaxDataLen {
		return "", fmt.Errorf("callbacks: data exceeds %d bytes: %q", MaxDataLen, data)
	}
	return data, nil
}

// MustBuild is Build for statically known inputs; it panics on error.
func MustBuild(name string, params ...string) string {
	data, err := Build(name, params...)
	if err != nil {
		panic(err)
	}
	return data
}
