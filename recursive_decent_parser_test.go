package main

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func compileVM(t *testing.T, source string) []string {
	t.Helper()
	tokens, err := Tokenize("Test.jack", strings.NewReader(source))
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	var out strings.Builder
	if err := NewJackCompiler(tokens).Compile(&out); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

// compileFailure compiles source expecting a CompileError and no output.
func compileFailure(t *testing.T, source string) *CompileError {
	t.Helper()
	tokens, err := Tokenize("Test.jack", strings.NewReader(source))
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	var out strings.Builder
	err = NewJackCompiler(tokens).Compile(&out)
	if err == nil {
		t.Fatalf("expected Compile() to fail, got:\n%s", out.String())
	}
	if out.Len() != 0 {
		t.Errorf("expected no output on failure, got:\n%s", out.String())
	}
	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected a CompileError, got %T: %v", err, err)
	}
	return compileErr
}

// functionCommands returns the commands of one function, header included.
func functionCommands(commands []string, name string) []string {
	var body []string
	for _, command := range commands {
		if strings.HasPrefix(command, "function ") {
			if body != nil {
				break
			}
			if strings.HasPrefix(command, "function "+name+" ") {
				body = []string{}
			}
		}
		if body != nil {
			body = append(body, command)
		}
	}
	return body
}

func assertCommands(t *testing.T, got, expected []string) {
	t.Helper()
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("unexpected VM code\nGot:\n%s\n\nExpected:\n%s", strings.Join(got, "\n"), strings.Join(expected, "\n"))
	}
}

func assertContainsSequence(t *testing.T, got, sequence []string) {
	t.Helper()
	for i := 0; i+len(sequence) <= len(got); i++ {
		if reflect.DeepEqual(got[i:i+len(sequence)], sequence) {
			return
		}
	}
	t.Errorf("expected VM code to contain\n%s\n\nGot:\n%s", strings.Join(sequence, "\n"), strings.Join(got, "\n"))
}

// wrapFunction puts statements into a function of class Main with the given
// local declarations.
func wrapFunction(vars, statements string) string {
	return "class Main {\n function void f() {\n" + vars + "\n" + statements + "\n return;\n }\n}\n"
}

func TestCompileMain(t *testing.T) {
	got := compileVM(t, `
class Main {
    function void main() {
        var int x;
        let x = 1 + 2 * 3;
        return;
    }
}`)
	assertCommands(t, got, []string{
		"function Main.main 1",
		"push constant 0",
		"pop local 0",
		"push constant 1",
		"push constant 2",
		"add",
		"push constant 3",
		"call Math.multiply 2",
		"pop local 0",
		"push constant 0",
		"return",
	})
}

func TestCompileObjects(t *testing.T) {
	got := compileVM(t, `
/** A point in the plane. */
class Point {
    field int x, y;
    static int count;

    constructor Point new(int ax, int ay) {
        let x = ax;
        let y = ay;
        let count = count + 1;
        return this;
    }

    method int getX() {
        return x;
    }

    method Point plus(Point other) {
        return Point.new(x + other.getX(), y);
    }

    function void dispose() {
        return;
    }
}`)
	assertCommands(t, got, []string{
		"function Point.new 0",
		"push constant 2",
		"call Memory.alloc 1",
		"pop pointer 0",
		"push argument 0",
		"pop this 0",
		"push argument 1",
		"pop this 1",
		"push static 0",
		"push constant 1",
		"add",
		"pop static 0",
		"push pointer 0",
		"return",
		"function Point.getX 0",
		"push argument 0",
		"pop pointer 0",
		"push this 0",
		"return",
		"function Point.plus 0",
		"push argument 0",
		"pop pointer 0",
		"push this 0",
		"push argument 1",
		"call Point.getX 1",
		"add",
		"push this 1",
		"call Point.new 2",
		"return",
		"function Point.dispose 0",
		"push constant 0",
		"return",
	})
}

func TestCompileControlFlow(t *testing.T) {
	got := compileVM(t, `
class Main {
    function int abs(int n) {
        var int r;
        if (n < 0) {
            let r = -n;
        } else {
            let r = n;
        }
        while (r > 10) {
            let r = r - 10;
        }
        return r;
    }
}`)
	assertCommands(t, got, []string{
		"function Main.abs 1",
		"push constant 0",
		"pop local 0",
		"push argument 0",
		"push constant 0",
		"lt",
		"not",
		"if-goto Main_0_if_false",
		"push argument 0",
		"neg",
		"pop local 0",
		"goto Main_1_if_end",
		"label Main_0_if_false",
		"push argument 0",
		"pop local 0",
		"label Main_1_if_end",
		"label Main_2_while_start",
		"push local 0",
		"push constant 10",
		"gt",
		"not",
		"if-goto Main_3_while_end",
		"push local 0",
		"push constant 10",
		"sub",
		"pop local 0",
		"goto Main_2_while_start",
		"label Main_3_while_end",
		"push local 0",
		"return",
	})
}

func TestIfWithoutElseEmitsBothLabels(t *testing.T) {
	got := compileVM(t, wrapFunction("var boolean b;", "if (b) { do Output.printInt(1); }"))
	assertContainsSequence(t, got, []string{
		"push local 0",
		"not",
		"if-goto Main_0_if_false",
		"push constant 1",
		"call Output.printInt 1",
		"pop temp 0",
		"goto Main_1_if_end",
		"label Main_0_if_false",
		"label Main_1_if_end",
	})
}

func TestLabelsAreUniqueWithinClass(t *testing.T) {
	got := compileVM(t, `
class Main {
    function void a() { if (true) { } return; }
    function void b() { while (false) { } if (true) { } else { } return; }
}`)

	seen := map[string]bool{}
	for _, command := range got {
		if !strings.HasPrefix(command, "label ") {
			continue
		}
		label := strings.TrimPrefix(command, "label ")
		if seen[label] {
			t.Errorf("label %s emitted twice", label)
		}
		seen[label] = true
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 labels, got %d: %v", len(seen), seen)
	}
	if !seen["Main_2_while_start"] || !seen["Main_5_if_end"] {
		t.Errorf("expected the label counter to continue across subroutines, got %v", seen)
	}
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		name       string
		vars       string
		statements string
		expected   []string
	}{
		{
			name:       "NoPrecedence",
			vars:       "var int x;",
			statements: "let x = 10 - 4 - 3;",
			expected:   []string{"push constant 10", "push constant 4", "sub", "push constant 3", "sub", "pop local 0"},
		},
		{
			name:       "Parentheses",
			vars:       "var int x;",
			statements: "let x = 1 + (2 * 3);",
			expected:   []string{"push constant 1", "push constant 2", "push constant 3", "call Math.multiply 2", "add", "pop local 0"},
		},
		{
			name:       "Division",
			vars:       "var int x;",
			statements: "let x = x / 2;",
			expected:   []string{"push local 0", "push constant 2", "call Math.divide 2", "pop local 0"},
		},
		{
			name:       "Comparisons and logic",
			vars:       "var boolean b; var int x;",
			statements: "let b = (x > 1) & (x < 5) | (x = 9);",
			expected: []string{
				"push local 1", "push constant 1", "gt",
				"push local 1", "push constant 5", "lt", "and",
				"push local 1", "push constant 9", "eq", "or",
				"pop local 0",
			},
		},
		{
			name:       "Unary",
			vars:       "var int x; var boolean b;",
			statements: "let b = ~(x = -x);",
			expected:   []string{"push local 0", "push local 0", "neg", "eq", "not", "pop local 1"},
		},
		{
			name:       "True",
			vars:       "var boolean b;",
			statements: "let b = true;",
			expected:   []string{"push constant 1", "neg", "pop local 0"},
		},
		{
			name:       "False and null",
			vars:       "var boolean b; var Array a;",
			statements: "let b = false; let a = null;",
			expected:   []string{"push constant 0", "pop local 0", "push constant 0", "pop local 1"},
		},
		{
			name:       "String constant",
			vars:       "var String s;",
			statements: `let s = "Hi";`,
			expected: []string{
				"push constant 2", "call String.new 1",
				"push constant 72", "call String.appendChar 2",
				"push constant 105", "call String.appendChar 2",
				"pop local 0",
			},
		},
		{
			name:       "Array read",
			vars:       "var Array a; var int i, x;",
			statements: "let x = a[i + 1];",
			expected: []string{
				"push local 0", "push local 1", "push constant 1", "add",
				"add", "pop pointer 1", "push that 0", "pop local 2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileVM(t, wrapFunction(tt.vars, tt.statements))
			assertContainsSequence(t, got, tt.expected)
		})
	}
}

func TestArrayAssignment(t *testing.T) {
	t.Run("Constant index", func(t *testing.T) {
		got := compileVM(t, wrapFunction("var Array arr; var int i;", "let arr[5] = 7;"))
		assertCommands(t, got, []string{
			"function Main.f 2",
			"push constant 0",
			"pop local 0",
			"push constant 0",
			"pop local 1",
			"push local 0",
			"push constant 5",
			"add",
			"pop temp 3",
			"push constant 7",
			"push temp 3",
			"pop pointer 1",
			"pop that 0",
			"push constant 0",
			"return",
		})
	})

	t.Run("Variable index", func(t *testing.T) {
		got := compileVM(t, wrapFunction("var Array arr; var int i;", "let arr[i] = 7;"))
		assertContainsSequence(t, got, []string{
			"push local 0", "push local 1", "add", "pop temp 3",
			"push constant 7", "push temp 3", "pop pointer 1", "pop that 0",
		})
	})

	t.Run("Array on both sides", func(t *testing.T) {
		got := compileVM(t, wrapFunction("var Array a, b; var int i, j;", "let a[i] = b[j];"))
		assertContainsSequence(t, got, []string{
			"push local 0", "push local 2", "add", "pop temp 3",
			"push local 1", "push local 3", "add", "pop pointer 1", "push that 0",
			"push temp 3", "pop pointer 1", "pop that 0",
		})
	})
}

func TestSubroutineCalls(t *testing.T) {
	got := compileVM(t, `
class Game {
    field List items;
    static Screen screen;

    method void run(Ball ball) {
        var Paddle paddle;
        do draw(1, 2);
        do ball.move();
        do paddle.resize(3);
        do items.add(4);
        do screen.clear();
        do Output.printInt(paddle.width() + Math.max(5, 6));
        do Sys.halt();
        return;
    }
}`)
	assertCommands(t, functionCommands(got, "Game.run"), []string{
		"function Game.run 1",
		"push argument 0",
		"pop pointer 0",
		"push constant 0",
		"pop local 0",
		// implicit self call
		"push pointer 0",
		"push constant 1",
		"push constant 2",
		"call Game.draw 3",
		"pop temp 0",
		// argument receiver
		"push argument 1",
		"call Ball.move 1",
		"pop temp 0",
		// local receiver
		"push local 0",
		"push constant 3",
		"call Paddle.resize 2",
		"pop temp 0",
		// field receiver
		"push this 0",
		"push constant 4",
		"call List.add 2",
		"pop temp 0",
		// static receiver
		"push static 0",
		"call Screen.clear 1",
		"pop temp 0",
		// class functions take no receiver
		"push local 0",
		"call Paddle.width 1",
		"push constant 5",
		"push constant 6",
		"call Math.max 2",
		"add",
		"call Output.printInt 1",
		"pop temp 0",
		"call Sys.halt 0",
		"pop temp 0",
		"push constant 0",
		"return",
	})
}

func TestSubroutineShape(t *testing.T) {
	source := `
class Counter {
    field int value, step, limit;

    constructor Counter new() { return this; }
    method void inc() { var int a, b; var boolean c; let value = value + step; return; }
    method int get() { return value; }
    function int zero() { var int z; return z; }
}`
	got := compileVM(t, source)

	t.Run("OneFunctionPerSubroutine", func(t *testing.T) {
		count := 0
		for _, command := range got {
			if strings.HasPrefix(command, "function ") {
				count++
			}
		}
		if count != 4 {
			t.Errorf("expected 4 functions, got %d", count)
		}
	})

	t.Run("LocalCounts", func(t *testing.T) {
		expected := map[string]string{
			"Counter.new":  "function Counter.new 0",
			"Counter.inc":  "function Counter.inc 3",
			"Counter.get":  "function Counter.get 0",
			"Counter.zero": "function Counter.zero 1",
		}
		for name, header := range expected {
			body := functionCommands(got, name)
			if len(body) == 0 || body[0] != header {
				t.Errorf("expected %q, got %v", header, body)
			}
		}
	})

	t.Run("ConstructorPrologue", func(t *testing.T) {
		body := functionCommands(got, "Counter.new")
		assertCommands(t, body[1:4], []string{"push constant 3", "call Memory.alloc 1", "pop pointer 0"})
	})

	t.Run("MethodPrologue", func(t *testing.T) {
		for _, name := range []string{"Counter.inc", "Counter.get"} {
			body := functionCommands(got, name)
			assertCommands(t, body[1:3], []string{"push argument 0", "pop pointer 0"})
		}
	})

	t.Run("EveryFunctionReturnsAValue", func(t *testing.T) {
		inc := functionCommands(got, "Counter.inc")
		assertCommands(t, inc[len(inc)-2:], []string{"push constant 0", "return"})
		zero := functionCommands(got, "Counter.zero")
		assertCommands(t, zero[len(zero)-2:], []string{"push local 0", "return"})
	})
}

func TestMethodArgumentsStartAtOne(t *testing.T) {
	got := compileVM(t, `
class Box {
    method int area(int w, int h) { return w * h; }
    function int square(int w) { return w * w; }
}`)
	assertCommands(t, functionCommands(got, "Box.area"), []string{
		"function Box.area 0",
		"push argument 0",
		"pop pointer 0",
		"push argument 1",
		"push argument 2",
		"call Math.multiply 2",
		"return",
	})
	assertCommands(t, functionCommands(got, "Box.square"), []string{
		"function Box.square 0",
		"push argument 0",
		"push argument 0",
		"call Math.multiply 2",
		"return",
	})
}

func TestLocalShadowsField(t *testing.T) {
	got := compileVM(t, `
class Shadow {
    field int x;
    method int get() { var int x; let x = 5; return x; }
    method int getField() { return x; }
}`)
	assertCommands(t, functionCommands(got, "Shadow.get"), []string{
		"function Shadow.get 1",
		"push argument 0",
		"pop pointer 0",
		"push constant 0",
		"pop local 0",
		"push constant 5",
		"pop local 0",
		"push local 0",
		"return",
	})
	assertContainsSequence(t, functionCommands(got, "Shadow.getField"), []string{"push this 0", "return"})
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   ErrorKind
		rule   string
		msg    string
	}{
		{
			name:   "Empty input",
			source: "",
			kind:   SyntaxError,
			rule:   "class",
			msg:    `expected "class", got end of input`,
		},
		{
			name:   "Missing semicolon",
			source: "class Main { function int main() { return 1 } }",
			kind:   SyntaxError,
			rule:   "returnStatement",
			msg:    `expected ";", got symbol "}"`,
		},
		{
			name:   "Bad term",
			source: wrapFunction("var int x;", "let x = ;"),
			kind:   SyntaxError,
			rule:   "term",
			msg:    `expected term, got symbol ";"`,
		},
		{
			name:   "Missing class name",
			source: "class { }",
			kind:   SyntaxError,
			rule:   "class",
			msg:    "expected identifier",
		},
		{
			name:   "Bad return type",
			source: "class Main { function 5 main() { return; } }",
			kind:   SyntaxError,
			rule:   "subroutineDec",
			msg:    "expected return type",
		},
		{
			name:   "Field after subroutine",
			source: "class Main { function void main() { return; } field int x; }",
			kind:   SyntaxError,
			rule:   "class",
			msg:    "after a subroutine declaration",
		},
		{
			name:   "Tokens after class",
			source: "class Main { } class Other { }",
			kind:   SyntaxError,
			rule:   "class",
			msg:    "after the end of class Main",
		},
		{
			name:   "Unclosed class",
			source: "class Main { function void main() { return; }",
			kind:   SyntaxError,
			rule:   "class",
			msg:    "got end of input",
		},
		{
			name:   "Bad call",
			source: wrapFunction("", "do Output;"),
			kind:   SyntaxError,
			rule:   "doStatement",
			msg:    `expected "(" or "."`,
		},
		{
			name:   "Undeclared variable",
			source: wrapFunction("", "let y = 1;"),
			kind:   SemanticError,
			rule:   "letStatement",
			msg:    `undeclared variable "y"`,
		},
		{
			name:   "Undeclared variable in expression",
			source: wrapFunction("var int x;", "let x = y + 1;"),
			kind:   SemanticError,
			rule:   "term",
			msg:    `undeclared variable "y"`,
		},
		{
			name:   "Duplicate local",
			source: wrapFunction("var int x; var char x;", ""),
			kind:   SemanticError,
			rule:   "varDec",
			msg:    `"x" is already declared`,
		},
		{
			name:   "Duplicate parameter",
			source: "class Main { function void f(int a, int a) { return; } }",
			kind:   SemanticError,
			rule:   "parameterList",
			msg:    `"a" is already declared`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileFailure(t, tt.source)
			if err.Kind != tt.kind {
				t.Errorf("expected a %s error, got %s: %v", tt.kind, err.Kind, err)
			}
			if err.Rule != tt.rule {
				t.Errorf("expected the error in %s, got %s: %v", tt.rule, err.Rule, err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected the error to contain %q, got %q", tt.msg, err.Error())
			}
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	err := compileFailure(t, "class Main {\n  function void main() {\n    let y = 1;\n    return;\n  }\n}")
	if err.Pos.Filename != "Test.jack" || err.Pos.Line != 3 || err.Pos.Column != 9 {
		t.Errorf("unexpected error position %+v", err.Pos)
	}
	if !strings.HasPrefix(err.Error(), "Test.jack:3:9: semantic error in letStatement") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestCompileTrace(t *testing.T) {
	tokens, err := Tokenize("Test.jack", strings.NewReader(wrapFunction("var int x;", "let x = 1;")))
	if err != nil {
		t.Fatal(err)
	}

	var trace, out strings.Builder
	compiler := NewJackCompiler(tokens)
	compiler.SetTrace(&trace)
	if err := compiler.Compile(&out); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	for _, expected := range []string{"Compiling class at Test.jack:1:1", "Compiling letStatement", "Compiled Main.f, symbols:", `"x"`} {
		if !strings.Contains(trace.String(), expected) {
			t.Errorf("expected the trace to contain %q\n%s", expected, trace.String())
		}
	}
}
