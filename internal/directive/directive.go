// Package directive defines the value types that make up a processed
// configuration: the shared block every module sees, the per-module record,
// and the optional preprocessing directive. The types are pure data; the
// only behavior here is the suffix-pair defaulting rule.
package directive

// PPKind distinguishes the two preprocessing flavors the consuming tool
// understands.
type PPKind int

const (
	// PPSubstitution rewrites source text through an external program
	// before compilation.
	PPSubstitution PPKind = iota
	// PPMacro runs a compiler-integrated transformation driver.
	PPMacro
)

// Flag returns the flag token the consuming tool expects for this kind.
func (k PPKind) Flag() string {
	if k == PPMacro {
		return "-ppx"
	}
	return "-pp"
}

// PP is the preprocessing directive attached to at most one module. Command
// is a single shell-joined command line.
type PP struct {
	Kind    PPKind `cbor:"kind"`
	Command string `cbor:"command"`
}

// SuffixPair overrides the implementation/interface filename suffixes for
// one registered source dialect. An empty side means "not set".
type SuffixPair struct {
	Impl string `cbor:"impl"`
	Intf string `cbor:"intf"`
}

// Resolve applies the defaulting rule: a missing side reuses the other,
// and a fully empty pair resolves to nothing.
func (s SuffixPair) Resolve() (impl, intf string, ok bool) {
	switch {
	case s.Impl != "" && s.Intf != "":
		return s.Impl, s.Intf, true
	case s.Impl != "":
		return s.Impl, s.Impl, true
	case s.Intf != "":
		return s.Intf, s.Intf, true
	default:
		return "", "", false
	}
}

// Shared is the configuration block common to every module of a build unit.
// ObjDirs and SrcDirs carry set semantics: deduplicated, stored sorted, and
// order-irrelevant to consumers. Flags, Suffixes and SecondaryFlags are
// ordered; the consuming tool treats later tokens as overriding earlier ones.
type Shared struct {
	Stdlib         string       `cbor:"stdlib,omitempty"`
	ObjDirs        []string     `cbor:"obj_dirs"`
	SrcDirs        []string     `cbor:"src_dirs"`
	Flags          []string     `cbor:"flags"`
	Suffixes       []SuffixPair `cbor:"suffixes"`
	SecondaryFlags []string     `cbor:"secondary_flags"`
}

// Module is the per-module configuration record. Opens lists the module
// names implicitly brought into scope, in declaration order. A module's
// preprocessing directive deliberately has no field here: directives live
// in the artifact's separate per-module-name map.
type Module struct {
	Name  string   `cbor:"name"`
	Opens []string `cbor:"opens"`
}
