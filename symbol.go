package main

type SymbolType string

const (
	StaticSymbol   SymbolType = "static"
	FieldSymbol    SymbolType = "field"
	ArgumentSymbol SymbolType = "argument"
	VarSymbol      SymbolType = "var"
	InvalidSymbol  SymbolType = ""
)

func (s SymbolType) scope() Scope {
	switch s {
	case StaticSymbol, FieldSymbol:
		return ClassScope
	case ArgumentSymbol, VarSymbol:
		return FunctionScope
	}
	return InvalidScope
}

// segment is the VM memory segment variables of this kind live in.
func (s SymbolType) segment() VMSegmentType {
	switch s {
	case StaticSymbol:
		return StaticVMSegment
	case FieldSymbol:
		return ThisVMSegment
	case ArgumentSymbol:
		return ArgumentVMSegment
	case VarSymbol:
		return LocalVMSegment
	}
	return InvalidVMSegmentType
}

type Symbol struct {
	name         string
	symbolType   SymbolType
	variableType string
	index        MachineWord
}
