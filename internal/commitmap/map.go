// Package commitmap translates mercurial commit hashes and branch names
// to their git equivalents, using the per-repository map files produced
// by the repository conversion tooling. Each map file is named after the
// repository's short name and holds one "<hg-hash> <git-hash>" pair per
// line.
package commitmap

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdeniau/bitbucket-issue-migration/internal/logging"
)

// Map holds the loaded hash translations for every converted repository.
type Map struct {
	hashes map[string]string
}

// Empty returns a map with no hash translations. Commit links then fall
// back to the unmapped marker and branch names pass through untouched
// apart from the default-to-master rename.
func Empty() *Map {
	return &Map{hashes: make(map[string]string)}
}

// Load reads every .map file in dir. The repository a hash belongs to
// does not matter for lookups; hashes are globally unique, so all files
// merge into one table.
func Load(dir string) (*Map, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit map directory %s: %w", dir, err)
	}

	m := &Map{hashes: make(map[string]string)}
	files := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".map") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := m.loadFile(path); err != nil {
			return nil, err
		}
		files++
	}

	logging.Info("loaded commit map",
		"directory", dir,
		"files", files,
		"hashes", len(m.hashes))
	return m, nil
}

func (m *Map) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open commit map file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return fmt.Errorf("malformed commit map entry at %s:%d: %q", path, line, text)
		}
		m.hashes[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read commit map file %s: %w", path, err)
	}
	return nil
}

// CommitHash translates a mercurial hash to its git hash. The second
// result is false when the hash was never converted.
func (m *Map) CommitHash(hgHash string) (string, bool) {
	gitHash, ok := m.hashes[hgHash]
	return gitHash, ok
}

// BranchName translates a branch name of the repository being migrated.
// Mercurial's "default" branch becomes "master"; everything else keeps
// its name.
func (m *Map) BranchName(branch string) string {
	if branch == "default" {
		return "master"
	}
	return branch
}

// BranchNameIn translates a branch name that lives in another converted
// repository. Fork branches are namespaced with the fork's short name,
// matching how the repository conversion imports fork heads.
func (m *Map) BranchNameIn(branch, repo string) string {
	name := m.BranchName(branch)
	short := repo
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		short = repo[idx+1:]
	}
	return short + "/" + name
}
