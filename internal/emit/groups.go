package emit

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kyson-dev/subsync/internal/decoder"
	"github.com/kyson-dev/subsync/internal/group"
)

// WriteGroupURILists writes one plain-text URI list per group under
// dir/groups/<Name>.txt: LF line endings, no trailing blank line, reusing
// each node's cached Raw representation when present instead of
// re-encoding it. This is the canonical location for the catch-all
// group; "Others" is written to dir/groups/Others.txt, not
// dir/others.txt, resolving the two-locations ambiguity in favor of
// keeping every group artifact under one directory.
func WriteGroupURILists(dir string, groups []group.Group) error {
	groupsDir := filepath.Join(dir, "groups")
	if err := os.MkdirAll(groupsDir, 0o755); err != nil {
		return err
	}
	for _, g := range groups {
		lines := make([]string, 0, len(g.Nodes))
		for _, n := range g.Nodes {
			uri := n.Raw
			if uri == "" {
				encoded, err := decoder.Encode(n)
				if err != nil {
					continue
				}
				uri = encoded
			}
			lines = append(lines, uri)
		}
		path := filepath.Join(groupsDir, sanitizeFileName(g.Name)+".txt")
		content := strings.Join(lines, "\n")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return replacer.Replace(name)
}
