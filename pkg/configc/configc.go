// Package configc generates the C translation unit declaring every
// staged extension module's init function and the _PyImport_Inittab
// array the Python core consults at startup.
package configc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/replicate/pyrepack/pkg/resource"
)

// Generate renders config.c for the given staged extension modules.
// Extensions whose InitFunc is empty or the literal "NULL" contribute
// neither an extern declaration nor an inittab row. Iteration order is
// ascending module name, matching every other deterministic pass in this
// pipeline.
func Generate(extensions map[string]resource.ExtensionVariant) string {
	names := make([]string, 0, len(extensions))
	for name, v := range extensions {
		if v.InitFunc != "" && v.InitFunc != "NULL" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("#include \"Python.h\"\n\n")

	for _, name := range names {
		fmt.Fprintf(&b, "extern PyObject* %s(void);\n", extensions[name].InitFunc)
	}
	b.WriteString("\n")

	b.WriteString("struct _inittab _PyImport_Inittab[] = {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "    {\"%s\", %s},\n", name, extensions[name].InitFunc)
	}
	b.WriteString("    {0, 0},\n")
	b.WriteString("};\n")

	return b.String()
}

// InittabNames returns the module names that will receive an inittab
// row, in emission order — used by tests and by the orchestrator's
// invariant checks (inittab closure).
func InittabNames(extensions map[string]resource.ExtensionVariant) []string {
	var names []string
	for name, v := range extensions {
		if v.InitFunc != "" && v.InitFunc != "NULL" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
