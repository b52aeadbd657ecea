package jack_test

import (
	"strings"
	"testing"

	"nandc.dev/toolchain/pkg/jack"
)

func parseClass(t *testing.T, source string) jack.Class {
	t.Helper()
	parser := jack.NewParser(strings.NewReader(source))
	class, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected error parsing class: %s", err)
	}
	return class
}

func TestParserParsesEmptyClass(t *testing.T) {
	class := parseClass(t, "class Main { }")
	if class.Name != "Main" {
		t.Errorf("expected class name 'Main', got %q", class.Name)
	}
	if class.Fields.Size() != 0 {
		t.Errorf("expected no fields, got %d", class.Fields.Size())
	}
	if class.Subroutines.Size() != 0 {
		t.Errorf("expected no subroutines, got %d", class.Subroutines.Size())
	}
}

func TestParserParsesClassVarDecsAndShares(t *testing.T) {
	class := parseClass(t, `
		class Point {
			field int x, y;
			static boolean initialized;
		}
	`)

	x, ok := class.Fields.Get("x")
	if !ok || x.Type != jack.Field || x.DataType != jack.Int {
		t.Errorf("expected field 'x' to be a Field/Int variable, got %+v (ok=%v)", x, ok)
	}
	y, ok := class.Fields.Get("y")
	if !ok || y.Type != jack.Field || y.DataType != jack.Int {
		t.Errorf("expected field 'y' to be a Field/Int variable, got %+v (ok=%v)", y, ok)
	}
	initialized, ok := class.Fields.Get("initialized")
	if !ok || initialized.Type != jack.Static || initialized.DataType != jack.Bool {
		t.Errorf("expected field 'initialized' to be a Static/Bool variable, got %+v (ok=%v)", initialized, ok)
	}
}

func TestParserParsesSubroutineSignature(t *testing.T) {
	class := parseClass(t, `
		class Point {
			constructor Point new(int ax, int ay) {
				return this;
			}
		}
	`)

	sub, ok := class.Subroutines.Get("new")
	if !ok {
		t.Fatalf("expected subroutine 'new' to be registered")
	}
	if sub.Type != jack.Constructor {
		t.Errorf("expected subroutine type 'constructor', got %q", sub.Type)
	}
	if sub.Return != jack.Object {
		t.Errorf("expected return type 'Object', got %q", sub.Return)
	}
	if len(sub.Arguments) != 2 {
		t.Fatalf("expected 2 arguments, got %d: %+v", len(sub.Arguments), sub.Arguments)
	}
	if sub.Arguments[0].Name != "ax" || sub.Arguments[0].Type != jack.Parameter || sub.Arguments[0].DataType != jack.Int {
		t.Errorf("unexpected first argument: %+v", sub.Arguments[0])
	}
	if len(sub.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(sub.Statements))
	}
	ret, ok := sub.Statements[0].(jack.ReturnStmt)
	if !ok {
		t.Fatalf("expected a ReturnStmt, got %T", sub.Statements[0])
	}
	if _, ok := ret.Expr.(jack.VarExpr); !ok {
		t.Fatalf("expected return expression to be a VarExpr (this), got %T", ret.Expr)
	}
}

func TestParserParsesLetStatementWithArrayAssignment(t *testing.T) {
	class := parseClass(t, `
		class Main {
			function void run() {
				var Array a;
				let a[0] = 1;
				return;
			}
		}
	`)

	sub, ok := class.Subroutines.Get("run")
	if !ok {
		t.Fatalf("expected subroutine 'run'")
	}

	// Statement 0 is the 'var' declaration, statement 1 is the 'let'.
	letStmt, ok := sub.Statements[1].(jack.LetStmt)
	if !ok {
		t.Fatalf("expected a LetStmt at index 1, got %T", sub.Statements[1])
	}
	arrayExpr, ok := letStmt.Lhs.(jack.ArrayExpr)
	if !ok {
		t.Fatalf("expected LHS to be an ArrayExpr, got %T", letStmt.Lhs)
	}
	if arrayExpr.Var != "a" {
		t.Errorf("expected array variable 'a', got %q", arrayExpr.Var)
	}
}

func TestParserLeftToRightExpressionFoldWithNoPrecedence(t *testing.T) {
	class := parseClass(t, `
		class Main {
			function int compute() {
				return 1 + 2 * 3;
			}
		}
	`)

	sub, _ := class.Subroutines.Get("compute")
	ret := sub.Statements[0].(jack.ReturnStmt)

	// Flat left-to-right fold means '1 + 2 * 3' parses as '(1 + 2) * 3', not
	// '1 + (2 * 3)' - there is no operator precedence in the Jack grammar.
	outer, ok := ret.Expr.(jack.BinaryExpr)
	if !ok {
		t.Fatalf("expected a BinaryExpr, got %T", ret.Expr)
	}
	if outer.Type != jack.Multiply {
		t.Errorf("expected the outermost operator to be the last-seen '*', got %q", outer.Type)
	}
	inner, ok := outer.Lhs.(jack.BinaryExpr)
	if !ok {
		t.Fatalf("expected LHS to be a nested BinaryExpr, got %T", outer.Lhs)
	}
	if inner.Type != jack.Plus {
		t.Errorf("expected the inner operator to be '+', got %q", inner.Type)
	}
}

func TestParserDisambiguatesIdentifierLedTerms(t *testing.T) {
	class := parseClass(t, `
		class Main {
			function void run() {
				var int plain;
				var Array arr;
				let plain = arr[0];
				let plain = unqualified(1);
				let plain = Other.qualified(2);
				return;
			}
		}
	`)

	sub, ok := class.Subroutines.Get("run")
	if !ok {
		t.Fatalf("expected subroutine 'run'")
	}

	// Statements 0-1 are 'var' declarations; 2-4 are the three 'let' forms below.
	arrayLet := sub.Statements[2].(jack.LetStmt)
	if _, ok := arrayLet.Rhs.(jack.ArrayExpr); !ok {
		t.Errorf("expected RHS to be an ArrayExpr, got %T", arrayLet.Rhs)
	}

	unqualifiedLet := sub.Statements[3].(jack.LetStmt)
	unqualifiedCall, ok := unqualifiedLet.Rhs.(jack.FuncCallExpr)
	if !ok {
		t.Fatalf("expected RHS to be a FuncCallExpr, got %T", unqualifiedLet.Rhs)
	}
	if unqualifiedCall.IsExtCall {
		t.Errorf("expected an unqualified call, got IsExtCall=true")
	}
	if unqualifiedCall.FuncName != "unqualified" {
		t.Errorf("expected call to 'unqualified', got %q", unqualifiedCall.FuncName)
	}

	qualifiedLet := sub.Statements[4].(jack.LetStmt)
	qualifiedCall, ok := qualifiedLet.Rhs.(jack.FuncCallExpr)
	if !ok {
		t.Fatalf("expected RHS to be a FuncCallExpr, got %T", qualifiedLet.Rhs)
	}
	if !qualifiedCall.IsExtCall || qualifiedCall.Var != "Other" || qualifiedCall.FuncName != "qualified" {
		t.Errorf("expected qualified call 'Other.qualified', got %+v", qualifiedCall)
	}
}

func TestParserParsesIfElseAndWhile(t *testing.T) {
	class := parseClass(t, `
		class Main {
			function void run() {
				if (1) {
					let x = 1;
				} else {
					let x = 2;
				}
				while (1) {
					let x = 3;
				}
				return;
			}
		}
	`)

	sub, _ := class.Subroutines.Get("run")
	ifStmt, ok := sub.Statements[0].(jack.IfStmt)
	if !ok {
		t.Fatalf("expected an IfStmt, got %T", sub.Statements[0])
	}
	if len(ifStmt.ThenBlock) != 1 || len(ifStmt.ElseBlock) != 1 {
		t.Errorf("expected one statement per branch, got then=%d else=%d", len(ifStmt.ThenBlock), len(ifStmt.ElseBlock))
	}

	whileStmt, ok := sub.Statements[1].(jack.WhileStmt)
	if !ok {
		t.Fatalf("expected a WhileStmt, got %T", sub.Statements[1])
	}
	if len(whileStmt.Block) != 1 {
		t.Errorf("expected one statement in the loop body, got %d", len(whileStmt.Block))
	}
}

func TestParserRejectsTrailingTokensAfterClass(t *testing.T) {
	parser := jack.NewParser(strings.NewReader("class Main { } class Leftover { }"))
	if _, err := parser.Parse(); err == nil {
		t.Fatalf("expected an error for trailing content after the class declaration, got none")
	}
}

func TestParserRejectsMalformedSource(t *testing.T) {
	parser := jack.NewParser(strings.NewReader("class Main { method void run( }"))
	if _, err := parser.Parse(); err == nil {
		t.Fatalf("expected a syntax error for malformed source, got none")
	}
}
