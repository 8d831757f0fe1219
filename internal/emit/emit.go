// Package emit turns classified, grouped nodes into the two artifact
// families the spec requires: plain per-group URI lists, and per-client
// configs (sing-box/Mihomo/Surge/V2Ray), generalizing the teacher's
// ConfigModule/ConfigBuilder assembly pattern beyond sing-box alone.
package emit

import (
	"fmt"
	"path/filepath"

	"github.com/kyson-dev/subsync/internal/group"
	"github.com/kyson-dev/subsync/internal/node"
)

// Targets enumerates the client-config formats Run will produce.
type Targets struct {
	SingBox bool
	Mihomo  bool
	Surge   bool
	V2Ray   bool
}

// DefaultTargets enables every supported client format.
func DefaultTargets() Targets {
	return Targets{SingBox: true, Mihomo: true, Surge: true, V2Ray: true}
}

// Run writes every enabled artifact under outputDir: outputDir/groups/*.txt
// plus outputDir/{mihomo.yaml,clash.yaml,surge.conf,singbox.json,v2ray.json}.
// "clash.yaml" is a byte-identical copy of mihomo.yaml, since Clash and
// Mihomo share the same config dialect and the spec asks for both paths.
func Run(outputDir string, groups []group.Group, allNodes []node.Node, targets Targets) error {
	groups = group.SortGroups(groups)

	if err := WriteGroupURILists(outputDir, groups); err != nil {
		return fmt.Errorf("emit: group uri lists: %w", err)
	}

	if targets.Mihomo {
		mihomoPath := filepath.Join(outputDir, "mihomo.yaml")
		if err := WriteMihomo(mihomoPath, groups); err != nil {
			return fmt.Errorf("emit: mihomo config: %w", err)
		}
		clashPath := filepath.Join(outputDir, "clash.yaml")
		if err := WriteMihomo(clashPath, groups); err != nil {
			return fmt.Errorf("emit: clash config: %w", err)
		}
	}
	if targets.Surge {
		if err := WriteSurge(filepath.Join(outputDir, "surge.conf"), groups); err != nil {
			return fmt.Errorf("emit: surge config: %w", err)
		}
	}
	if targets.V2Ray {
		if err := WriteV2Ray(filepath.Join(outputDir, "v2ray.json"), groups); err != nil {
			return fmt.Errorf("emit: v2ray config: %w", err)
		}
	}
	if targets.SingBox {
		opts, err := BuildSingBoxOptions(groups, allNodes)
		if err != nil {
			return fmt.Errorf("emit: building sing-box options: %w", err)
		}
		if err := WriteSingBox(filepath.Join(outputDir, "singbox.json"), opts); err != nil {
			return fmt.Errorf("emit: sing-box config: %w", err)
		}
	}
	return nil
}
