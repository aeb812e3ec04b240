package core

import (
	"fmt"
	"sort"
	"strings"
)

// OpID is the stable small integer identifying a registered op within an
// isolate. Assigned once at bootstrap, never reused.
type OpID uint32

// maxFastArgs bounds the fast-call stub arity.
const maxFastArgs = 3

// OpContext is the immutable per-operation descriptor. Everything here is
// fixed at registration for the isolate's lifetime; fast-call eligibility
// in particular is never renegotiated.
type OpContext struct {
	ID           OpID
	Name         string
	Policy       SchedulingPolicy
	FastCallable bool
	Arity        int
	Async        bool

	Decl OpDecl
}

// Registry is the per-isolate op table: a dense array indexed by OpID plus
// a name→id map, both built once at bootstrap so dispatch never hashes per
// call. Immutable after construction.
type Registry struct {
	table  []*OpContext
	byName map[string]OpID
}

// BuildRegistry assembles the registry from an extension set. Duplicate op
// names anywhere in the set fail construction, independent of registration
// order. Disabled ops are skipped entirely: no id, no table entry, no
// JS-visible name.
func BuildRegistry(exts []Extension) (*Registry, error) {
	seen := make(map[string][]string) // op name -> extensions declaring it
	for _, ext := range exts {
		for _, op := range ext.Ops {
			if op.Name == "" {
				return nil, fmt.Errorf("extension %q declares an op with an empty name", ext.Name)
			}
			seen[op.Name] = append(seen[op.Name], ext.Name)
		}
	}
	var dups []string
	for name, owners := range seen {
		if len(owners) > 1 {
			sort.Strings(owners)
			dups = append(dups, fmt.Sprintf("%s (%s)", name, strings.Join(owners, ", ")))
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, fmt.Errorf("duplicate op names: %s", strings.Join(dups, "; "))
	}

	r := &Registry{byName: make(map[string]OpID)}
	for _, ext := range exts {
		for _, op := range ext.Ops {
			if op.Disabled {
				continue
			}
			if (op.Sync == nil) == (op.Async == nil) {
				return nil, fmt.Errorf("op %q must set exactly one of Sync and Async", op.Name)
			}
			id := OpID(len(r.table))
			r.table = append(r.table, &OpContext{
				ID:           id,
				Name:         op.Name,
				Policy:       op.Policy,
				FastCallable: fastCallable(op),
				Arity:        len(op.Args),
				Async:        op.Async != nil,
				Decl:         op,
			})
			r.byName[op.Name] = id
		}
	}
	return r, nil
}

// fastCallable decides fast-call eligibility at registration: every
// argument and the return must be representable without heap-object or
// scope access, the op must be synchronous, and it must not declare the
// scope-access capability.
func fastCallable(op OpDecl) bool {
	if op.Sync == nil || op.ScopeAccess || len(op.Args) > maxFastArgs {
		return false
	}
	for _, a := range op.Args {
		if !scalarArg(a.Kind) || a.AllowNull {
			return false
		}
	}
	return scalarRet(op.Ret)
}

// scalarArg lists the argument kinds a float64 slot can carry. ArgBool is
// excluded: the slow path rejects numbers for bool arguments, and a numeric
// slot cannot preserve that distinction, so bool-arg ops stay on the slow
// path.
func scalarArg(k ArgKind) bool {
	switch k {
	case ArgI32, ArgU32, ArgF64, ArgI64Lossy, ArgU64Lossy:
		return true
	}
	return false
}

func scalarRet(k RetKind) bool {
	switch k {
	case RetVoid, RetI32, RetU32, RetF64, RetBool, RetI64Lossy, RetU64Lossy:
		return true
	}
	return false
}

// Lookup resolves a name to an op id.
func (r *Registry) Lookup(name string) (OpID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// ByID returns the descriptor for id, or nil when out of range.
func (r *Registry) ByID(id OpID) *OpContext {
	if int(id) >= len(r.table) {
		return nil
	}
	return r.table[id]
}

// Len returns the number of registered ops.
func (r *Registry) Len() int { return len(r.table) }

// Ops returns the dense descriptor table in id order.
func (r *Registry) Ops() []*OpContext { return r.table }
