package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"
)

// undocumented is one exported declaration found without a GoDoc comment.
type undocumented struct {
	line int
	kind string
	name string
}

// TestExportedSymbolsHaveGoDoc requires a comment starting with the symbol
// name on every exported declaration in internal packages. Members of a
// grouped const or var block may rely on the block comment or an inline
// comment instead.
func TestExportedSymbolsHaveGoDoc(t *testing.T) {
	t.Parallel()

	for _, pkg := range internalPackages(t) {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()

			for _, file := range goFilesIn(t, filepath.Join(internalDirPath(t), pkg)) {
				fset := token.NewFileSet()
				node, err := parser.ParseFile(fset, file, nil, parser.ParseComments)
				if err != nil {
					t.Fatalf("parsing %s: %v", file, err)
				}
				for _, u := range missingDocs(fset, node) {
					t.Errorf("%s/%s:%d: exported %s %s has no GoDoc comment",
						pkg, filepath.Base(file), u.line, u.kind, u.name)
				}
			}
		})
	}
}

// missingDocs lists the exported declarations of one parsed file that lack
// a GoDoc comment.
func missingDocs(fset *token.FileSet, node *ast.File) []undocumented {
	var out []undocumented
	miss := func(pos token.Pos, kind, name string) {
		out = append(out, undocumented{line: fset.Position(pos).Line, kind: kind, name: name})
	}

	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if !d.Name.IsExported() || (d.Recv != nil && !receiverExported(d.Recv)) {
				continue
			}
			if !startsWith(docText(d.Doc), d.Name.Name) {
				kind := "func"
				if d.Recv != nil {
					kind = "method"
				}
				miss(d.Pos(), kind, d.Name.Name)
			}
		case *ast.GenDecl:
			grouped := len(d.Specs) > 1
			blockDoc := strings.TrimSpace(docText(d.Doc)) != ""
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					if s.Name.IsExported() && !startsWith(docText(s.Doc, d.Doc), s.Name.Name) {
						miss(s.Pos(), "type", s.Name.Name)
					}
				case *ast.ValueSpec:
					inline := strings.TrimSpace(docText(s.Comment)) != ""
					for _, name := range s.Names {
						if !name.IsExported() {
							continue
						}
						if grouped && (blockDoc || inline || startsWith(docText(s.Doc), name.Name)) {
							continue
						}
						if !grouped && startsWith(docText(s.Doc, d.Doc), name.Name) {
							continue
						}
						miss(name.Pos(), strings.ToLower(d.Tok.String()), name.Name)
					}
				}
			}
		}
	}
	return out
}

func startsWith(doc, name string) bool {
	return strings.HasPrefix(strings.TrimSpace(doc), name)
}

// receiverExported reports whether a method's receiver base type is
// exported, looking through pointers and type parameters.
func receiverExported(recv *ast.FieldList) bool {
	if len(recv.List) == 0 {
		return false
	}
	expr := recv.List[0].Type
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.IsExported()
		default:
			return false
		}
	}
}

func TestMissingDocsCanary(t *testing.T) {
	t.Parallel()

	src := `package p

// Documented is fine.
type Documented struct{}

type Bare struct{}

func (Bare) Method() {}

type hidden struct{}

func (hidden) Method() {}

const (
	// A is first.
	A = 1
	B = 2
)

var Lonely = 3
`
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}

	var got []string
	for _, u := range missingDocs(fset, node) {
		got = append(got, u.kind+" "+u.name)
	}
	want := []string{"type Bare", "method Method", "const B", "var Lonely"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("missingDocs = %v, want %v", got, want)
	}
}
