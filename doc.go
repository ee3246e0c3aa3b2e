// Package cnav provides source navigation for C, C++ and Objective-C:
// goto definition, goto implementation, a navigation history, code
// completion and diagnostics, built on a tree-sitter semantic provider.
//
// # Resolution
//
// Every navigation command first asks the semantic provider about the
// entity under the caret and walks a fixed cascade of rules:
//
//   - Goto definition prefers the canonical declaration of a definition,
//     then the base-class method it overrides, the type of a variable, the
//     base of a class, the declaration a reference denotes, and finally the
//     file an #include names.
//   - Goto implementation prefers the definition of a declaration. A
//     function with no definition in the unit is looked up in the source
//     files beside its header, if it has one, and then searched for.
//
// When semantics cannot answer, the line under the caret is classified by
// hand and, if needed, an Extensive Search walks the project folders with a
// pool of workers. A semantic hit in any candidate file navigates directly;
// textual matches come back as [Result.Choices] for [Engine.Choose].
//
// # Usage
//
//	e, err := cnav.New(cnav.WithFolders("path/to/project"))
//	if err != nil { ... }
//	defer e.Close()
//
//	res, err := e.GotoImplementation(ctx, "src/a.h", 12, 6)
//	switch {
//	case res.Target != nil:
//		// navigated
//	case len(res.Choices) > 0:
//		res, err = e.Choose(origin, res.Choices[0])
//	default:
//		fmt.Println(res.Message)
//	}
//
// # History
//
// Each jump is pushed on a navigation stack that [Engine.GoBack] pops. With
// [WithHistory] the stack and a log of Extensive Search sessions are kept in
// SQLite so they survive restarts.
//
// # Compile options
//
// Parser options come from the configured list, optionally rewritten per
// file by a Risor script (see [WithOptionsScript]):
//
//	if file_path.has_suffix(".m") {
//	    options + ["-ObjC"]
//	} else {
//	    options
//	}
package cnav
