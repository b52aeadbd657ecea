package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// translate writes each entry of 'sources' (filename -> VM source) into a fresh temp
// directory, runs 'Handler' over all of them, and returns the generated .asm as lines.
func translate(t *testing.T, sources map[string]string, options map[string]string) []string {
	t.Helper()
	dir := t.TempDir()

	inputs := make([]string, 0, len(sources))
	for filename, content := range sources {
		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write fixture %s: %s", filename, err)
		}
		inputs = append(inputs, path)
	}

	outputPath := filepath.Join(dir, "out.asm")
	merged := map[string]string{"output": outputPath}
	for k, v := range options {
		merged[k] = v
	}

	if status := Handler(inputs, merged); status != 0 {
		t.Fatalf("unexpected exit status: expected 0, got %d", status)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("failed to read generated output: %s", err)
	}

	return strings.Split(strings.TrimRight(string(content), "\n"), "\n")
}

func TestVMTranslatorSimpleAdd(t *testing.T) {
	lines := translate(t, map[string]string{
		"SimpleAdd.vm": "push constant 7\npush constant 8\nadd\n",
	}, nil)

	joined := strings.Join(lines, "\n")

	pushSeven := strings.Join([]string{"@7", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1"}, "\n")
	if !strings.Contains(joined, pushSeven) {
		t.Errorf("expected output to contain 'push constant 7' expansion, got:\n%s", joined)
	}

	addExpansion := strings.Join([]string{"@SP", "AM=M-1", "D=M", "@SP", "A=M-1", "M=M+D"}, "\n")
	if !strings.Contains(joined, addExpansion) {
		t.Errorf("expected output to contain 'add' expansion, got:\n%s", joined)
	}
}

func TestVMTranslatorRequiresOutputOption(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Main.vm")
	if err := os.WriteFile(input, []byte("push constant 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %s", err)
	}

	if status := Handler([]string{input}, nil); status == 0 {
		t.Fatalf("expected a non-zero exit status when --output is missing, got 0")
	}
}

func TestVMTranslatorBootstrapsWhenSysModulePresent(t *testing.T) {
	lines := translate(t, map[string]string{
		"Sys.vm": "function Sys.init 0\ncall Sys.init 0\n",
	}, nil)

	expectedPrefix := []string{"@256", "D=A", "@SP", "M=D"}
	for i, want := range expectedPrefix {
		if lines[i] != want {
			t.Fatalf("line %d: expected bootstrap prefix %q, got %q (full output: %v)", i, want, lines[i], lines)
		}
	}

	found := false
	for _, line := range lines {
		if line == "@Sys.init" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bootstrap to reference '@Sys.init', got %v", lines)
	}
}

func TestVMTranslatorOmitsBootstrapWithoutSysModuleOrFlag(t *testing.T) {
	lines := translate(t, map[string]string{
		"Main.vm": "push constant 1\n",
	}, nil)

	if lines[0] == "@256" {
		t.Fatalf("expected no bootstrap prefix without a 'Sys.vm' module or --bootstrap flag, got %v", lines)
	}
}

func TestVMTranslatorBootstrapFlagForcesBootstrap(t *testing.T) {
	lines := translate(t, map[string]string{
		"Main.vm": "push constant 1\n",
	}, map[string]string{"bootstrap": "true"})

	if lines[0] != "@256" {
		t.Fatalf("expected --bootstrap to force the bootstrap prefix, got %v", lines)
	}
}

func TestVMTranslatorDirectoryInputDefaultsToOutputAsm(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{
		"Main.vm": "push constant 1\n",
		"Sys.vm":  "function Sys.init 0\ncall Sys.init 0\n",
	}
	for filename, content := range sources {
		if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write fixture %s: %s", filename, err)
		}
	}

	if status := Handler([]string{dir}, nil); status != 0 {
		t.Fatalf("unexpected exit status: expected 0, got %d", status)
	}

	content, err := os.ReadFile(filepath.Join(dir, "output.asm"))
	if err != nil {
		t.Fatalf("expected a default 'output.asm' in the input directory: %s", err)
	}

	// The directory contains Sys.vm, so the bootstrap must lead the output.
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	expectedPrefix := []string{"@256", "D=A", "@SP", "M=D"}
	for i, want := range expectedPrefix {
		if lines[i] != want {
			t.Fatalf("line %d: expected bootstrap prefix %q, got %q", i, want, lines[i])
		}
	}
}

func TestVMTranslatorAppendsSafetyHalt(t *testing.T) {
	lines := translate(t, map[string]string{
		"Main.vm": "push constant 1\n",
	}, nil)

	tail := lines[len(lines)-3:]
	expected := []string{"(END)", "@END", "0;JMP"}
	for i, want := range expected {
		if tail[i] != want {
			t.Fatalf("expected trailing halt loop %v, got %v", expected, tail)
		}
	}
}

func TestVMTranslatorStaticSegmentIsScopedPerModule(t *testing.T) {
	lines := translate(t, map[string]string{
		"Foo.vm": "push constant 0\npop static 0\n",
	}, nil)

	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "@Foo.0") {
		t.Errorf("expected static variable to be named after its module, got:\n%s", joined)
	}
}
