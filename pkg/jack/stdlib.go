package jack

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed stdlib.json
var content string

// StandardLibraryABI maps each OS class name (Math, String, Array, ...) to its
// subroutine signatures, keyed by subroutine name. It carries no statements: the
// entries exist purely so the TypeChecker can vet calls into the standard library
// without the caller having to compile its sources alongside their own (the
// Lowerer emits calls into out-of-program classes as written either way).
var StandardLibraryABI = map[string]map[string]Subroutine{}

func init() {
	if err := json.Unmarshal([]byte(content), &StandardLibraryABI); err != nil {
		panic(fmt.Sprintf("jack: malformed embedded stdlib.json: %s", err))
	}
}
