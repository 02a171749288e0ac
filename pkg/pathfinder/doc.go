/*
Package pathfinder discovers filesystem paths under explicit security
boundaries.

The Finder walks a directory tree depth-first in a deterministic order,
applies include/exclude globs, hidden-entry policy, and cascading
gitignore-style ignore files, guards symlink resolution against escapes and
loops, and optionally attaches streaming checksums computed by a bounded
worker pool. A separate entry point locates a repository root by walking
upward from a start path looking for marker files.

Boundary violations are governed by the constraint's enforcement level:
STRICT aborts the whole operation, WARN drops the entry and reports it
through the error callback and telemetry, PERMISSIVE allows everything.

Basic usage:

	finder, err := pathfinder.NewFinder(pathfinder.Config{
		CalculateChecksums: true,
		Constraint: &pathfinder.Constraint{
			Root:             "/workspace",
			EnforcementLevel: pathfinder.EnforcementStrict,
		},
	}, afero.NewOsFs(), log)

	results, err := finder.Find(ctx, pathfinder.NewQuery("/workspace/configs"), &pathfinder.Callbacks{
		Result: func(r pathfinder.PathResult) { fmt.Println(r.RelativePath) },
	})

	root, err := finder.FindRepositoryRoot(ctx, "/workspace/configs", []string{".git"}, nil)
*/
package pathfinder
