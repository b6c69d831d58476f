package orchestrator

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/plugdeploy/pkg/errors"
	"github.com/arthur-debert/plugdeploy/pkg/paths"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns a line diff from the package version of rel to the
// installed one. Lines only in the package are prefixed "-", lines only
// in the target "+". An empty string means the files are identical.
func (o *Orchestrator) Diff(source, target, rel string) (string, error) {
	p := absPaths("Diff", source, target)
	source, target = p[0], p[1]

	rel = path.Clean(filepath.ToSlash(rel))
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.Newf(errors.ErrValidation, "%s is not a relative package path", rel).
			WithDetail("path", rel)
	}

	srcPath, err := paths.ValidatePath(filepath.Join(source, filepath.FromSlash(rel)), source)
	if err != nil {
		return "", err
	}
	dstPath, err := o.validator.ValidatePath(filepath.Join(target, filepath.FromSlash(rel)), target)
	if err != nil {
		return "", err
	}

	incoming, err := o.fs.ReadFile(srcPath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileNotFound, "cannot read package file %s", rel).
			WithDetail("path", rel)
	}
	installed, err := o.fs.ReadFile(dstPath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileNotFound, "cannot read installed file %s", rel).
			WithDetail("path", rel)
	}

	return LineDiff(string(incoming), string(installed)), nil
}

// LineDiff renders a line-oriented diff of a against b.
func LineDiff(a, b string) string {
	if a == b {
		return ""
	}
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			out.WriteString(prefix)
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return out.String()
}
