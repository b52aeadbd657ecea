package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/teris-io/cli"
	"nandc.dev/toolchain/pkg/asm"
	"nandc.dev/toolchain/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in 
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .vm file
	WithArg(cli.NewArg("inputs", "The bytecode (.vm) files, or one directory containing them").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("output", "The compiled output (.asm), defaults to '<dir>/output.asm' for directory input").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Includes bootstrap code in the final .asm file").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	// A single directory argument is the usual invocation: every '.vm' file inside it
	// is one translation unit and the output defaults to '<dir>/output.asm'. Explicit
	// file arguments are accepted too but then '--output' must name the destination.
	inputs, outputPath := args, options["output"]
	if info, err := os.Stat(args[0]); len(args) == 1 && err == nil && info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(args[0], "*.vm"))
		if err != nil || len(matches) == 0 {
			fmt.Printf("ERROR: No .vm files found in directory '%s'\n", args[0])
			return -1
		}
		// Glob already yields sorted paths, the translation order is stable across runs
		inputs = matches
		if outputPath == "" {
			outputPath = filepath.Join(args[0], "output.asm")
		}
	}

	if outputPath == "" {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	output, err := os.Create(outputPath)
	if err != nil {
		fmt.Printf("ERROR: %s\n", errors.Wrap(err, "unable to open output file"))
		return -1
	}
	defer output.Close()

	// Allocates a 'vm.Program' struct to save all the parsed translation unit
	// (the .vm files) that will be parsed and lowered independently and then
	// sent to the codegen phases (that will create a monolithic compiled output).
	program := vm.Program{}

	// For every file provided by the user we do the following things
	for _, input := range inputs {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Printf("ERROR: %s\n", errors.Wrapf(err, "unable to open input file '%s'", input))
			return -1
		}

		// Instantiate a parser for the Vm program
		parser := vm.NewParser(bytes.NewReader(content))
		// The module is keyed by the file stem (no directory, no extension): 'static'
		// slots lowered from 'Foo.vm' must come out as assembly symbols 'Foo.<i>'.
		filename, extension := path.Base(input), path.Ext(input)
		// Parses the input file content and extract an AST (as a 'vm.Module') from it.
		program[strings.TrimSuffix(filename, extension)], err = parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: %s\n", errors.Wrapf(err, "unable to complete 'parsing' pass for '%s'", input))
			return -1
		}
	}

	// Instantiate a lowerer to convert the program from Vm to Asm
	lowerer := vm.NewLowerer(program)
	// Lowers the vm.Program to an in-memory/IR representation of its Asm counterpart 'asm.Program'.
	asmProgram, err := lowerer.Lower()
	if err != nil {
		fmt.Printf("ERROR: %s\n", errors.Wrap(err, "unable to complete 'lowering' pass"))
		return -1
	}

	// The bootstrap code (SP=256; call Sys.init 0) is prepended whenever the user explicitly
	// asks for it, or implicitly whenever the input set includes a Sys.vm module: a multi-file
	// program is only ever runnable starting from Sys.init, so we don't force the caller to
	// remember the flag on every invocation that happens to include that translation unit.
	_, hasSysModule := program["Sys"]
	_, bootstrapFlag := options["bootstrap"]
	if hasSysModule || bootstrapFlag {
		asmProgram = append(lowerer.Bootstrap(), asmProgram...)
	}

	// Safety net: an infinite loop after the last instruction so the CPU never
	// runs off the end of the program into uninitialized memory.
	asmProgram = append(asmProgram, lowerer.Halt()...)

	// Now, instantiates a code generator for the Asm (compiled) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: %s\n", errors.Wrap(err, "unable to complete 'codegen' pass"))
		return -1
	}

	for _, comp := range compiled {
		line := fmt.Sprintf("%s\n", comp)
		output.Write([]byte(line))
	}

	return 0
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
