package vm

import (
	"fmt"
	"sort"

	"nandc.dev/toolchain/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (one or more already-parsed translation units) and
// produces its 'asm.Program' counterpart, ready to be fed to the Hack code generator.
//
// Lowering happens one module at a time, in a single linear pass over each module's
// operations; the Lowerer only keeps track of the enclosing function (for label scoping)
// and a monotonic counter used to mint unique labels for comparisons and call sites.
type Lowerer struct {
	program Program
	nLabel  uint32 // Monotonic counter, guarantees uniqueness of generated labels across modules
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Lowers every module in the program to a single 'asm.Program', in deterministic
// (alphabetical by module name) order so that repeated runs produce identical output.
func (l *Lowerer) Lower() (asm.Program, error) {
	program := asm.Program{}

	names := make([]string, 0, len(l.program))
	for name := range l.program {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lowered, err := l.lowerModule(name, l.program[name])
		if err != nil {
			return nil, err
		}
		program = append(program, lowered...)
	}

	return program, nil
}

// Builds the bootstrap sequence expected to run before any user code: sets SP to 256
// then calls Sys.init with no arguments. Kept separate from Lower so callers decide
// whether/when to prepend it (e.g. only when a "Sys.vm" module is present).
func (l *Lowerer) Bootstrap() asm.Program {
	program := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	program = append(program, l.lowerFuncCallOp("Bootstrap", FuncCallOp{Name: "Sys.init", NArgs: 0})...)
	return program
}

// Halt builds the trailing safety net appended after the last module: an infinite
// loop the CPU spins on should control ever fall off the end of the program.
func (l *Lowerer) Halt() asm.Program {
	return asm.Program{
		asm.LabelDecl{Name: "END"},
		asm.AInstruction{Location: "END"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	}
}

// Lowers a single module; 'currentFunction' starts out empty so that any label/goto
// appearing before the first 'function' declaration stays unscoped.
func (l *Lowerer) lowerModule(name string, module Module) (asm.Program, error) {
	program := asm.Program{}
	currentFunction := ""

	for _, operation := range module {
		switch op := operation.(type) {
		case MemoryOp:
			lowered, err := l.lowerMemoryOp(name, op)
			if err != nil {
				return nil, err
			}
			program = append(program, lowered...)

		case ArithmeticOp:
			lowered, err := l.lowerArithmeticOp(op)
			if err != nil {
				return nil, err
			}
			program = append(program, lowered...)

		case LabelDecl:
			program = append(program, asm.LabelDecl{Name: scopedLabel(currentFunction, op.Name)})

		case GotoOp:
			program = append(program, l.lowerGotoOp(currentFunction, op)...)

		case FuncDecl:
			currentFunction = op.Name
			program = append(program, l.lowerFuncDecl(op)...)

		case FuncCallOp:
			program = append(program, l.lowerFuncCallOp(currentFunction, op)...)

		case ReturnOp:
			program = append(program, lowerReturnOp()...)

		default:
			return nil, fmt.Errorf("unrecognized operation %T in module '%s'", operation, name)
		}
	}

	return program, nil
}

func scopedLabel(function, label string) string {
	if function == "" {
		return label
	}
	return fmt.Sprintf("%s$%s", function, label)
}

// nextLabel mints a fresh, module-wide unique label for internal codegen bookkeeping
// (comparison short-circuits, call return addresses) that user code never references.
func (l *Lowerer) nextLabel(prefix string) string {
	l.nLabel++
	return fmt.Sprintf("%s.%d", prefix, l.nLabel)
}

// pushD appends the instructions that push the current value of the D register onto
// the stack and advance SP; every segment's push sequence funnels through this helper.
func pushD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// popD appends the instructions that decrement SP and load the popped value into D.
func popD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Memory Op

// pointerSegments map directly onto a base register whose M value is itself a pointer
// that must be indirected through (local/argument/this/that).
var pointerSegments = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

func (l *Lowerer) lowerMemoryOp(module string, op MemoryOp) (asm.Program, error) {
	switch op.Segment {
	case Constant:
		if op.Operation != Push {
			return nil, fmt.Errorf("segment 'constant' only supports push, got %s", op.Operation)
		}
		program := asm.Program{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
		return append(program, pushD()...), nil

	case Local, Argument, This, That:
		base := pointerSegments[op.Segment]
		return lowerIndirectSegment(asm.AInstruction{Location: base}, op)

	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
		}
		return lowerFixedSegment("5", op)

	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
		}
		target := "THIS"
		if op.Offset == 1 {
			target = "THAT"
		}
		if op.Operation == Push {
			program := asm.Program{
				asm.AInstruction{Location: target},
				asm.CInstruction{Dest: "D", Comp: "M"},
			}
			return append(program, pushD()...), nil
		}
		program := popD()
		return append(program, asm.AInstruction{Location: target}, asm.CInstruction{Dest: "M", Comp: "D"}), nil

	case Static:
		label := fmt.Sprintf("%s.%d", module, op.Offset)
		if op.Operation == Push {
			program := asm.Program{
				asm.AInstruction{Location: label},
				asm.CInstruction{Dest: "D", Comp: "M"},
			}
			return append(program, pushD()...), nil
		}
		program := popD()
		return append(program, asm.AInstruction{Location: label}, asm.CInstruction{Dest: "M", Comp: "D"}), nil

	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
	}
}

// lowerIndirectSegment handles segments whose base register holds a pointer that must
// be dereferenced (local, argument, this, that): the effective address is *base + offset.
func lowerIndirectSegment(base asm.AInstruction, op MemoryOp) (asm.Program, error) {
	if op.Operation == Push {
		program := asm.Program{
			base,
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(program, pushD()...), nil
	}

	program := asm.Program{
		base,
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(op.Offset)},
		asm.CInstruction{Dest: "D", Comp: "D+A"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	program = append(program, popD()...)
	return append(program,
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	), nil
}

// lowerFixedSegment handles segments whose base is a constant RAM address rather than
// a pointer held in a register (temp, whose 8 slots start at R5).
func lowerFixedSegment(base string, op MemoryOp) (asm.Program, error) {
	if op.Operation == Push {
		program := asm.Program{
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(program, pushD()...), nil
	}

	program := asm.Program{
		asm.AInstruction{Location: base},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: fmt.Sprint(op.Offset)},
		asm.CInstruction{Dest: "D", Comp: "D+A"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	program = append(program, popD()...)
	return append(program,
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	), nil
}

// ----------------------------------------------------------------------------
// Arithmetic Op

// binaryOpComp maps each binary arithmetic/logic op to the Hack comp bit-code applied
// once the two operands sit in M (first operand) and D (second operand, popped).
var binaryOpComp = map[ArithOpType]string{
	Add: "M+D",
	Sub: "M-D",
	And: "M&D",
	Or:  "M|D",
}

// unaryOpComp maps each unary op to the comp applied in place on the top of the stack.
var unaryOpComp = map[ArithOpType]string{
	Neg: "-M",
	Not: "!M",
}

// comparisonJump maps each comparison op to the jump directive used once the operands
// have been subtracted (D = first - second).
var comparisonJump = map[ArithOpType]string{
	Eq: "JEQ",
	Gt: "JGT",
	Lt: "JLT",
}

func (l *Lowerer) lowerArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	if comp, ok := unaryOpComp[op.Operation]; ok {
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if comp, ok := binaryOpComp[op.Operation]; ok {
		program := popD()
		return append(program,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		), nil
	}

	if jump, ok := comparisonJump[op.Operation]; ok {
		trueLabel := l.nextLabel(fmt.Sprintf("%s.TRUE", op.Operation))
		endLabel := l.nextLabel(fmt.Sprintf("%s.END", op.Operation))

		program := popD()
		program = append(program,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M-D"},
			asm.AInstruction{Location: trueLabel},
			asm.CInstruction{Comp: "D", Jump: jump},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: endLabel},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
			asm.LabelDecl{Name: trueLabel},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "-1"},
			asm.LabelDecl{Name: endLabel},
		)
		return program, nil
	}

	return nil, fmt.Errorf("unrecognized arithmetic op '%s'", op.Operation)
}

// ----------------------------------------------------------------------------
// Branching & Function protocol

func (l *Lowerer) lowerGotoOp(currentFunction string, op GotoOp) asm.Program {
	target := scopedLabel(currentFunction, op.Label)

	if op.Jump == Unconditional {
		return asm.Program{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}
	}

	program := popD()
	return append(program,
		asm.AInstruction{Location: target},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	)
}

// lowerFuncDecl emits the function's entry label and zero-initializes its NLocal
// local variables by repeatedly pushing the constant 0.
func (l *Lowerer) lowerFuncDecl(op FuncDecl) asm.Program {
	program := asm.Program{asm.LabelDecl{Name: op.Name}}

	for i := uint8(0); i < op.NLocal; i++ {
		program = append(program, asm.CInstruction{Dest: "D", Comp: "0"})
		program = append(program, pushD()...)
	}

	return program
}

// lowerFuncCallOp emits the standard calling convention: save the caller's frame
// (return address, LCL, ARG, THIS, THAT), reposition ARG/LCL for the callee and jump.
func (l *Lowerer) lowerFuncCallOp(currentFunction string, op FuncCallOp) asm.Program {
	returnLabel := l.nextLabel(fmt.Sprintf("%s$ret", currentFunction))

	program := asm.Program{
		asm.AInstruction{Location: returnLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	program = append(program, pushD()...)

	for _, segment := range []string{"LCL", "ARG", "THIS", "THAT"} {
		program = append(program,
			asm.AInstruction{Location: segment},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		program = append(program, pushD()...)
	}

	program = append(program,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: fmt.Sprint(op.NArgs)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: returnLabel},
	)

	return program
}

// lowerReturnOp restores the caller's frame (THAT, THIS, ARG, LCL) and segment pointers,
// repositions the return value atop the caller's stack and jumps back to the caller.
func lowerReturnOp() asm.Program {
	return asm.Program{
		// R13 = FRAME = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// R14 = RET = *(FRAME - 5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// *ARG = pop()
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// THAT = *(FRAME - 1)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// THIS = *(FRAME - 2)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THIS"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// ARG = *(FRAME - 3)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// LCL = *(FRAME - 4)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// goto RET
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	}
}
