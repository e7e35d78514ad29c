// Package registry holds the immutable module tables that map a module name
// to its subcommands and handler. Tables are built once at startup and are
// safe for concurrent reads.
package registry

import (
	"fmt"
	"slices"
	"time"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

// Kind separates the query and transaction namespaces.
type Kind string

const (
	KindQuery Kind = "query"
	KindTx    Kind = "tx"
)

// Subcommand describes one operation of a module. CacheTTL is only honored
// for queries; zero means results are never cached.
type Subcommand struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Usage       string        `json:"usageHint,omitempty"`
	CacheTTL    time.Duration `json:"-"`
}

// Module is a named group of subcommands served by one handler.
type Module[H any] struct {
	Name        string
	Description string
	Subcommands []Subcommand
	Handler     H
}

// Summary is the name and description pair returned by listings.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type entry[H any] struct {
	module Module[H]
	subs   map[string]Subcommand
}

// Table is a read-only lookup structure over modules of one kind.
type Table[H any] struct {
	kind    Kind
	order   []string
	entries map[string]entry[H]
}

// New builds a table, failing on empty or duplicate module and subcommand
// names.
func New[H any](kind Kind, modules ...Module[H]) (*Table[H], error) {
	t := &Table[H]{kind: kind, entries: make(map[string]entry[H], len(modules))}
	for _, m := range modules {
		if m.Name == "" {
			return nil, fmt.Errorf("%s table: module with empty name", kind)
		}
		if _, dup := t.entries[m.Name]; dup {
			return nil, fmt.Errorf("%s table: duplicate module %q", kind, m.Name)
		}
		subs := make(map[string]Subcommand, len(m.Subcommands))
		for _, s := range m.Subcommands {
			if s.Name == "" {
				return nil, fmt.Errorf("%s table: module %q has a subcommand with empty name", kind, m.Name)
			}
			if _, dup := subs[s.Name]; dup {
				return nil, fmt.Errorf("%s table: duplicate subcommand %q in module %q", kind, s.Name, m.Name)
			}
			subs[s.Name] = s
		}
		m.Subcommands = slices.Clone(m.Subcommands)
		t.entries[m.Name] = entry[H]{module: m, subs: subs}
		t.order = append(t.order, m.Name)
	}
	return t, nil
}

// MustNew is New for package-level tables whose contents are static.
func MustNew[H any](kind Kind, modules ...Module[H]) *Table[H] {
	t, err := New(kind, modules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Names returns module names in registration order.
func (t *Table[H]) Names() []string {
	return slices.Clone(t.order)
}

// Lookup resolves a module. A miss fails with UNKNOWN_MODULE listing every
// module of this kind.
func (t *Table[H]) Lookup(name string) (Module[H], error) {
	e, ok := t.entries[name]
	if !ok {
		details := map[string]any{
			"type":             string(t.kind),
			"module":           name,
			"availableModules": t.Names(),
		}
		if similar := FindSimilar(name, t.order, 3); len(similar) > 0 {
			details["suggestions"] = similar
		}
		return Module[H]{}, clierr.WithDetails(clierr.CodeUnknownModule,
			fmt.Sprintf("unknown %s module %q", t.kind, name), details)
	}
	m := e.module
	m.Subcommands = slices.Clone(m.Subcommands)
	return m, nil
}

// IsSupported reports whether module exposes sub. It never fails.
func (t *Table[H]) IsSupported(module, sub string) bool {
	e, ok := t.entries[module]
	if !ok {
		return false
	}
	_, ok = e.subs[sub]
	return ok
}

// Subcommand returns the descriptor for module/sub if it exists.
func (t *Table[H]) Subcommand(module, sub string) (Subcommand, bool) {
	e, ok := t.entries[module]
	if !ok {
		return Subcommand{}, false
	}
	s, ok := e.subs[sub]
	return s, ok
}

// Unsupported builds the error for a subcommand the module does not expose.
// The details list every subcommand of the module so the caller can correct
// itself without another round trip.
func (t *Table[H]) Unsupported(module, sub string) error {
	e, ok := t.entries[module]
	if !ok {
		_, err := t.Lookup(module)
		return err
	}
	code := clierr.CodeUnsupportedQuery
	if t.kind == KindTx {
		code = clierr.CodeUnsupportedTx
	}
	names := subcommandNames(e.module.Subcommands)
	details := map[string]any{
		"module":               module,
		"subcommand":           sub,
		"availableSubcommands": names,
	}
	if similar := FindSimilar(sub, names, 3); len(similar) > 0 {
		details["suggestions"] = similar
	}
	return clierr.WithDetails(code,
		fmt.Sprintf("unsupported %s subcommand %q for module %q", t.kind, sub, module), details)
}

// Modules lists module summaries in registration order.
func (t *Table[H]) Modules() []Summary {
	out := make([]Summary, 0, len(t.order))
	for _, name := range t.order {
		m := t.entries[name].module
		out = append(out, Summary{Name: m.Name, Description: m.Description})
	}
	return out
}

// Subcommands lists the subcommands of module in declaration order.
func (t *Table[H]) Subcommands(module string) ([]Subcommand, error) {
	m, err := t.Lookup(module)
	if err != nil {
		return nil, err
	}
	return m.Subcommands, nil
}

// Describe returns a single subcommand descriptor, failing with
// UNKNOWN_SUBCOMMAND when the module does not expose it.
func (t *Table[H]) Describe(module, sub string) (Subcommand, error) {
	m, err := t.Lookup(module)
	if err != nil {
		return Subcommand{}, err
	}
	if s, ok := t.Subcommand(module, sub); ok {
		return s, nil
	}
	return Subcommand{}, clierr.WithDetails(clierr.CodeUnknownSubcommand,
		fmt.Sprintf("unknown %s subcommand %q for module %q", t.kind, sub, module),
		map[string]any{
			"module":               module,
			"subcommand":           sub,
			"availableSubcommands": subcommandNames(m.Subcommands),
		})
}

func subcommandNames(subs []Subcommand) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.Name)
	}
	return out
}
