package jack

import "fmt"

// ----------------------------------------------------------------------------
// Jack Symbol Table

// ScopeTable composes the class scope ('static'/'field' kinds) and the subroutine
// scope ('parameter'/'local' kinds) as a lookup chain: a lookup always consults the
// subroutine scope first, then falls back to the class scope. Each kind keeps its
// own dense, zero-based index, assigned in declaration order; a kind's slice is only
// ever appended to within its scope's lifetime, so the position of an entry in the
// slice doubles as the VM segment offset used to reference it.
type ScopeTable struct {
	static []Variable
	field  []Variable

	local     []Variable
	parameter []Variable

	className      string
	subroutineName string
}

// Initializes and returns to the caller a brand new, empty 'ScopeTable'.
func NewScopeTable() *ScopeTable { return &ScopeTable{} }

// Begins a new class scope, discarding any 'static'/'field' entries left over from
// a previously processed class (each class counts its own fields/statics from 0).
func (st *ScopeTable) PushClassScope(class string) {
	st.className = class
	st.field, st.static = nil, nil
}

// Discards the current class scope entirely.
func (st *ScopeTable) PopClassScope() {
	st.className, st.field, st.static = "", nil, nil
}

// Begins a new subroutine scope, discarding any 'parameter'/'local' entries left
// over from a previously processed subroutine.
func (st *ScopeTable) PushSubRoutineScope(subroutine string) {
	st.subroutineName = subroutine
	st.local, st.parameter = nil, nil
}

// Discards the current subroutine scope entirely.
func (st *ScopeTable) PopSubroutineScope() {
	st.subroutineName, st.local, st.parameter = "", nil, nil
}

// Returns the fully qualified name of the scope currently being processed, used by
// the Lowerer both for VM function naming and for generated label prefixes.
func (st *ScopeTable) GetScope() string {
	switch {
	case st.subroutineName != "":
		return fmt.Sprintf("%s.%s", st.className, st.subroutineName)
	case st.className != "":
		return fmt.Sprintf("%s.Global", st.className)
	default:
		return "Global"
	}
}

// Adds a new entry to the scope matching the variable's kind. Redefinition (the same
// name registered twice within the same scope) is not rejected: the new entry simply
// shadows the old one on lookup, supporting Jack's parameter/local re-declaration.
func (st *ScopeTable) RegisterVariable(variable Variable) {
	switch variable.Type {
	case Local:
		st.local = append(st.local, variable)
	case Field:
		st.field = append(st.field, variable)
	case Parameter:
		st.parameter = append(st.parameter, variable)
	case Static:
		st.static = append(st.static, variable)
	}
}

// Returns the number of entries currently registered for the given kind, used by the
// Lowerer to size a subroutine's 'function ClassName.subName nLocals' declaration.
func (st *ScopeTable) VarCount(kind VarType) uint16 {
	switch kind {
	case Local:
		return uint16(len(st.local))
	case Field:
		return uint16(len(st.field))
	case Parameter:
		return uint16(len(st.parameter))
	case Static:
		return uint16(len(st.static))
	default:
		return 0
	}
}

// Looks up 'name', consulting subroutine scope (local, then parameter) before class
// scope (field, then static). Within a single kind, the most recently registered
// entry wins, so shadowing a parameter/local with a same-named re-declaration works.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	for _, entries := range [][]Variable{st.local, st.parameter, st.field, st.static} {
		if offset, variable, found := resolveInKind(entries, name); found {
			return offset, variable, nil
		}
	}

	return 0, Variable{}, fmt.Errorf("variable '%s' undeclared, not found in any scope", name)
}

// resolveInKind scans 'entries' from most to least recently registered, returning the
// first name match along with its declaration-order index (== its VM segment offset).
func resolveInKind(entries []Variable, name string) (uint16, Variable, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Name == name {
			return uint16(i), entries[i], true
		}
	}

	return 0, Variable{}, false
}
