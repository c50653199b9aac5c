package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}

		contextName := parts[1]
		serviceName := parts[2]
		layer := parts[3]
		modulePrefix := fmt.Sprintf("ballot/contexts/%s/%s", contextName, serviceName)

		fileViolations := validateFile(path, normalized, layer, modulePrefix)
		violations = append(violations, fileViolations...)
		return nil
	})

	return violations
}

// layerRule lists what a layer may import besides the standard library.
// Prefixes are relative to the owning service unless they start with the
// module path.
type layerRule struct {
	allowed []string
	name    string
}

var layerRules = map[string]layerRule{
	"domain": {
		name:    "domain",
		allowed: []string{"/domain"},
	},
	"ports": {
		name:    "ports",
		allowed: []string{"/domain", "ballot/contracts"},
	},
	"application": {
		name:    "application",
		allowed: []string{"/application", "/domain", "/ports", "ballot/contracts"},
	},
}

func validateFile(path string, normalizedPath string, layer string, modulePrefix string) []violation {
	var violations []violation

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return append(violations, violation{
			File: normalizedPath,
			Line: 1,
			Rule: "file must parse",
		})
	}

	rule, layered := layerRules[layer]
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if strings.HasPrefix(importPath, "ballot/contexts/") && !hasPrefix(importPath, modulePrefix) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   "cross-module imports are forbidden",
			})
		}
		if layered {
			violations = append(violations, validateLayerImport(normalizedPath, line, importPath, modulePrefix, rule)...)
		}
	}

	return violations
}

func validateLayerImport(file string, line int, importPath string, modulePrefix string, rule layerRule) []violation {
	var violations []violation
	add := func(reason string) {
		violations = append(violations, violation{
			File:   file,
			Line:   line,
			Import: importPath,
			Rule:   rule.name + " " + reason,
		})
	}

	if strings.Contains(importPath, "/adapters/") {
		add("must not import adapters")
	}
	if strings.HasPrefix(importPath, "ballot/internal/") || strings.HasPrefix(importPath, "ballot/cmd/") {
		add("must not import runtime infrastructure")
	}

	allowed := make([]string, 0, len(rule.allowed))
	for _, prefix := range rule.allowed {
		if strings.HasPrefix(prefix, "/") {
			prefix = modulePrefix + prefix
		}
		allowed = append(allowed, prefix)
	}
	if !isStdlib(importPath) && !isAllowed(importPath, allowed) {
		add("import is outside explicit allowlist")
	}
	return violations
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, "ballot/") {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
