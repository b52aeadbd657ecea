package jack_test

import (
	"strings"
	"testing"

	"nandc.dev/toolchain/pkg/jack"
	"nandc.dev/toolchain/pkg/vm"
)

// lowerClass parses 'source' as a single class, lowers the resulting one-class
// program and returns the generated VM text for that class, one line per operation.
func lowerClass(t *testing.T, source string) []string {
	t.Helper()
	class := parseClass(t, source)

	lowerer := jack.NewLowerer(jack.Program{class.Name: class})
	vmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error lowering class: %s", err)
	}

	codegen := vm.NewCodeGenerator(vmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected error generating VM code: %s", err)
	}
	return compiled[class.Name]
}

func TestLowererSimpleFunction(t *testing.T) {
	lines := lowerClass(t, `
		class M {
			function int seven() {
				return 7;
			}
		}
	`)

	expected := []string{"function M.seven 0", "push constant 7", "return"}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d: %v", len(expected), len(lines), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], lines[i])
		}
	}
}

func TestLowererTrueLiteralIsAllOnes(t *testing.T) {
	lines := lowerClass(t, `
		class M {
			function boolean yes() {
				var boolean b;
				let b = true;
				return b;
			}
		}
	`)

	// 'true' must survive the bitwise 'not' used by if/while conditions, so it has
	// to be all-ones (-1), produced as 'push constant 0; not' - never 'push constant 1'.
	joined := strings.Join(lines, "\n")
	expansion := "push constant 0\nnot\npop local 0"
	if !strings.Contains(joined, expansion) {
		t.Errorf("expected 'true' to lower to %q, got:\n%s", expansion, joined)
	}
}

func TestLowererConstructorAllocatesOneWordPerField(t *testing.T) {
	lines := lowerClass(t, `
		class Point {
			field int x, y;
			static int counter;

			constructor Point new(int ax, int ay) {
				let x = ax;
				let y = ay;
				return this;
			}
		}
	`)

	// The prologue sizes the allocation by field count only: statics live in their
	// own segment and must not inflate the object's footprint.
	joined := strings.Join(lines, "\n")
	prologue := "function Point.new 0\npush constant 2\ncall Memory.alloc 1\npop pointer 0"
	if !strings.Contains(joined, prologue) {
		t.Errorf("expected constructor prologue %q, got:\n%s", prologue, joined)
	}
}

func TestLowererArrayStoreSpillsThroughTemp(t *testing.T) {
	lines := lowerClass(t, `
		class M {
			function void copy(Array a, int i, int j) {
				let a[i] = a[j];
				return;
			}
		}
	`)

	// The LHS cell address is computed first, the RHS read second, and the store
	// goes through 'temp 0' so the RHS subscript cannot clobber 'pointer 1'.
	joined := strings.Join(lines, "\n")
	store := strings.Join([]string{
		"pop temp 0",
		"pop pointer 1",
		"push temp 0",
		"pop that 0",
	}, "\n")
	if !strings.Contains(joined, store) {
		t.Errorf("expected array store sequence %q, got:\n%s", store, joined)
	}

	rhsRead := "pop pointer 1\npush that 0"
	if !strings.Contains(joined, rhsRead) {
		t.Errorf("expected RHS array read %q before the store, got:\n%s", rhsRead, joined)
	}
	if strings.Index(joined, rhsRead) > strings.Index(joined, store) {
		t.Errorf("expected the RHS read to happen before the temp-spilled store, got:\n%s", joined)
	}
}

func TestLowererMethodCallPushesReceiverFirst(t *testing.T) {
	class := parseClass(t, `
		class Game {
			field Point origin;

			method int distance() {
				return origin.getX();
			}
		}
	`)
	callee := parseClass(t, `
		class Point {
			field int x;

			method int getX() {
				return x;
			}
		}
	`)

	lowerer := jack.NewLowerer(jack.Program{class.Name: class, callee.Name: callee})
	vmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error lowering program: %s", err)
	}

	codegen := vm.NewCodeGenerator(vmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected error generating VM code: %s", err)
	}

	// The receiver is pushed as the hidden first argument, so the call carries
	// nArgs+1 and targets the variable's declared class.
	joined := strings.Join(compiled["Game"], "\n")
	dispatch := "push this 0\ncall Point.getX 1"
	if !strings.Contains(joined, dispatch) {
		t.Errorf("expected method dispatch %q, got:\n%s", dispatch, joined)
	}
}

func TestLowererWhileNegatesConditionOnce(t *testing.T) {
	lines := lowerClass(t, `
		class M {
			function void spin(int n) {
				while (n > 0) {
					let n = n - 1;
				}
				return;
			}
		}
	`)

	joined := strings.Join(lines, "\n")
	condition := "push argument 0\npush constant 0\ngt\nnot\nif-goto"
	if !strings.Contains(joined, condition) {
		t.Errorf("expected negated loop condition %q, got:\n%s", condition, joined)
	}
}
