package main

import "fmt"

type Scope string

const (
	InvalidScope  Scope = ""
	FunctionScope Scope = "FunctionScope"
	ClassScope    Scope = "ClassScope"
)

// SymbolTable resolves identifiers of one class. The class scope lives for
// the whole class, the function scope is replaced at every subroutine.
type SymbolTable struct {
	classScopeTable    map[string]Symbol
	functionScopeTable map[string]Symbol
	counts             map[SymbolType]MachineWord
}

func NewSymbolTable() SymbolTable {
	return SymbolTable{
		classScopeTable:    make(map[string]Symbol),
		functionScopeTable: make(map[string]Symbol),
		counts:             make(map[SymbolType]MachineWord),
	}
}

func (s *SymbolTable) table(scope Scope) map[string]Symbol {
	if scope == ClassScope {
		return s.classScopeTable
	}
	return s.functionScopeTable
}

// StartClass forgets every symbol.
func (s *SymbolTable) StartClass() {
	*s = NewSymbolTable()
}

// StartSubroutine forgets arguments and locals, keeping statics and fields.
func (s *SymbolTable) StartSubroutine() {
	s.functionScopeTable = make(map[string]Symbol)
	delete(s.counts, ArgumentSymbol)
	delete(s.counts, VarSymbol)
}

// Define registers name in the scope implied by symbolType and assigns it
// the next index of that kind. A name may be declared only once per scope.
func (s *SymbolTable) Define(name, variableType string, symbolType SymbolType) (Symbol, error) {
	scope := symbolType.scope()
	if scope == InvalidScope {
		return Symbol{}, fmt.Errorf("cannot declare %q with unknown kind %q", name, symbolType)
	}

	table := s.table(scope)
	if previous, ok := table[name]; ok {
		return Symbol{}, fmt.Errorf("%q is already declared as %s %s", name, previous.symbolType, previous.variableType)
	}

	symbol := Symbol{
		name:         name,
		symbolType:   symbolType,
		variableType: variableType,
		index:        s.counts[symbolType],
	}
	s.counts[symbolType]++
	table[name] = symbol
	return symbol, nil
}

// Count is the number of symbols of the given kind in its scope.
func (s *SymbolTable) Count(symbolType SymbolType) MachineWord {
	return s.counts[symbolType]
}

func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	// Try to find it in the method scope table
	if symbol, ok := s.functionScopeTable[name]; ok {
		return symbol, true
	}
	// Try to find it in the class scope table
	symbol, ok := s.classScopeTable[name]
	return symbol, ok
}

// KindOf returns InvalidSymbol for undeclared names, which is how class
// names are told apart from variables.
func (s *SymbolTable) KindOf(name string) SymbolType {
	symbol, _ := s.Lookup(name)
	return symbol.symbolType
}

func (s *SymbolTable) TypeOf(name string) string {
	symbol, _ := s.Lookup(name)
	return symbol.variableType
}

func (s *SymbolTable) IndexOf(name string) MachineWord {
	symbol, _ := s.Lookup(name)
	return symbol.index
}
