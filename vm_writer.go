package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

type VMSegmentType string

const (
	InvalidVMSegmentType VMSegmentType = ""
	ConstVMSegment       VMSegmentType = "constant"
	ArgumentVMSegment    VMSegmentType = "argument"
	LocalVMSegment       VMSegmentType = "local"
	StaticVMSegment      VMSegmentType = "static"
	ThisVMSegment        VMSegmentType = "this"
	ThatVMSegment        VMSegmentType = "that"
	PointerVMSegment     VMSegmentType = "pointer"
	TempVMSegment        VMSegmentType = "temp"
)

type VMOperation string

const (
	InvalidVMOperation VMOperation = ""
	AddVMOperation     VMOperation = "add"
	SubVMOperation     VMOperation = "sub"
	NegVMOperation     VMOperation = "neg"
	EqVMOperation      VMOperation = "eq"
	GtVMOperation      VMOperation = "gt"
	LtVMOperation      VMOperation = "lt"
	AndVMOperation     VMOperation = "and"
	OrVMOperation      VMOperation = "or"
	NotVMOperation     VMOperation = "not"
)

// Multiplication and division have no opcode; they are calls into the OS
// Math class and therefore missing from binaryOperations.
var (
	binaryOperations = map[string]VMOperation{
		"+": AddVMOperation,
		"-": SubVMOperation,
		"&": AndVMOperation,
		"|": OrVMOperation,
		"=": EqVMOperation,
		">": GtVMOperation,
		"<": LtVMOperation,
	}
	unaryOperations = map[string]VMOperation{
		"-": NegVMOperation,
		"~": NotVMOperation,
	}
)

func formatPush(segment VMSegmentType, index MachineWord) string {
	return fmt.Sprintf("push %s %d", segment, index)
}

func formatPop(segment VMSegmentType, index MachineWord) string {
	return fmt.Sprintf("pop %s %d", segment, index)
}

func formatArithmetic(operation VMOperation) string {
	return string(operation)
}

func formatLabel(label string) string {
	return "label " + label
}

func formatGoto(label string) string {
	return "goto " + label
}

func formatIf(label string) string {
	return "if-goto " + label
}

func formatCall(name string, nargs MachineWord) string {
	return "call " + name + " " + strconv.Itoa(int(nargs))
}

func formatFunction(name string, nlocals MachineWord) string {
	return "function " + name + " " + strconv.Itoa(int(nlocals))
}

func formatReturn() string {
	return "return"
}

// VMWriter buffers formatted VM commands in memory. Nothing reaches an
// io.Writer before WriteTo.
type VMWriter struct {
	commands []string
}

func NewVMWriter() VMWriter {
	return VMWriter{}
}

func (w *VMWriter) WriteCommand(command string) {
	w.commands = append(w.commands, command)
}

func (w *VMWriter) WritePush(segment VMSegmentType, index MachineWord) {
	w.WriteCommand(formatPush(segment, index))
}

func (w *VMWriter) WritePop(segment VMSegmentType, index MachineWord) {
	w.WriteCommand(formatPop(segment, index))
}

// WriteStringConstant leaves a new String object holding constant on top of
// the stack. appendChar returns its receiver, so the object stays in place
// between calls.
func (w *VMWriter) WriteStringConstant(constant string) {
	w.WritePush(ConstVMSegment, MachineWord(len(constant)))
	w.WriteCall("String.new", 1)
	for i := 0; i < len(constant); i++ {
		w.WritePush(ConstVMSegment, MachineWord(constant[i]))
		w.WriteCall("String.appendChar", 2)
	}
}

func (w *VMWriter) WriteArithmetic(operation VMOperation) {
	w.WriteCommand(formatArithmetic(operation))
}

func (w *VMWriter) WriteLabel(label string) {
	w.WriteCommand(formatLabel(label))
}

func (w *VMWriter) WriteGoto(label string) {
	w.WriteCommand(formatGoto(label))
}

func (w *VMWriter) WriteIf(label string) {
	w.WriteCommand(formatIf(label))
}

func (w *VMWriter) WriteCall(label string, nargs MachineWord) {
	w.WriteCommand(formatCall(label, nargs))
}

func (w *VMWriter) WriteFunction(label string, nlocals MachineWord) {
	w.WriteCommand(formatFunction(label, nlocals))
}

func (w *VMWriter) WriteReturn() {
	w.WriteCommand(formatReturn())
}

// Prepend puts command in front of everything buffered so far.
func (w *VMWriter) Prepend(command string) {
	w.commands = append([]string{command}, w.commands...)
}

// Append moves the commands of other to the end of w.
func (w *VMWriter) Append(other *VMWriter) {
	w.commands = append(w.commands, other.commands...)
	other.commands = nil
}

func (w *VMWriter) Commands() []string {
	return w.commands
}

// WriteTo flushes the buffer as newline terminated lines.
func (w *VMWriter) WriteTo(output io.Writer) (int64, error) {
	if len(w.commands) == 0 {
		return 0, nil
	}
	n, err := io.WriteString(output, strings.Join(w.commands, "\n")+"\n")
	return int64(n), err
}
