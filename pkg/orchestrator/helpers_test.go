package orchestrator_test

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/arthur-debert/plugdeploy/pkg/audit"
	"github.com/arthur-debert/plugdeploy/pkg/config"
	"github.com/arthur-debert/plugdeploy/pkg/filesystem"
	"github.com/arthur-debert/plugdeploy/pkg/orchestrator"
	"github.com/arthur-debert/plugdeploy/pkg/types"
	"github.com/stretchr/testify/require"
)

var v1 = map[string]string{
	"agents/planner.md":      "planner v1",
	"commands/deploy.md":     "deploy v1",
	"hooks/pre_tool.sh":      "#!/bin/sh\necho pre v1\n",
	"scripts/setup.sh":       "#!/bin/sh\necho setup v1\n",
	"skills/review/SKILL.md": "review v1",
}

// writePackage creates a package tree at root with a JSON manifest that
// declares every file inside a category directory.
func writePackage(t *testing.T, root, version string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.RemoveAll(root))
	byCategory := make(map[string][]string)
	for rel, content := range files {
		writeFile(t, root, rel, content)
		if c, ok := types.CategoryOf(rel); ok {
			byCategory[c.String()] = append(byCategory[c.String()], rel)
		}
	}
	for _, list := range byCategory {
		sort.Strings(list)
	}
	doc := map[string]interface{}{
		"version":      version,
		"generated_at": "2026-10-01T12:00:00Z",
		"files":        byCategory,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	writeFile(t, root, "install_manifest.json", string(data))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// tree returns the content of every regular file under root, skipping
// the bookkeeping entries.
func tree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		switch {
		case d.IsDir() && rel == ".plugdeploy-backups":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		case rel == ".plugdeploy-install.json" || rel == ".plugdeploy.lock":
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

type fixture struct {
	source string
	target string
	audit  *audit.Recorder
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Lock.Timeout = 0
	return &fixture{
		source: filepath.Join(dir, "source"),
		target: filepath.Join(dir, "project", ".claude"),
		audit:  &audit.Recorder{},
		cfg:    cfg,
	}
}

func (f *fixture) orchestrator(t *testing.T, fsys filesystem.FS) *orchestrator.Orchestrator {
	t.Helper()
	if fsys == nil {
		fsys = filesystem.NewOS()
	}
	o, err := orchestrator.New(fsys,
		orchestrator.WithConfig(f.cfg),
		orchestrator.WithAudit(f.audit),
	)
	require.NoError(t, err)
	return o
}

type progressEvent struct {
	current, total int
	phase          string
}

func recordProgress(events *[]progressEvent) types.ProgressFunc {
	return func(current, total int, phase string) {
		*events = append(*events, progressEvent{current, total, phase})
	}
}

func phases(events []progressEvent) []string {
	var out []string
	for _, e := range events {
		if len(out) == 0 || out[len(out)-1] != e.phase {
			out = append(out, e.phase)
		}
	}
	return out
}
