package commissioning

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// lshwNode is one <node> element of lshw -xml output. The document root may be
// a <node> or a <list> of them; both decode into the same shape.
type lshwNode struct {
	XMLName  xml.Name
	ID       string        `xml:"id,attr"`
	Class    string        `xml:"class,attr"`
	Disabled string        `xml:"disabled,attr"`
	Size     *lshwQuantity `xml:"size"`
	Capacity *lshwQuantity `xml:"capacity"`
	Settings []lshwSetting `xml:"configuration>setting"`
	Children []lshwNode    `xml:"node"`
}

type lshwQuantity struct {
	Units string `xml:"units,attr"`
	Value string `xml:",chardata"`
}

type lshwSetting struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

// HardwareFacts are the node attributes derived from lshw output.
type HardwareFacts struct {
	CPUCount int
	CPUSpeed int   // MHz
	Memory   int64 // MiB
}

// ParseLSHW extracts hardware facts from lshw -xml output.
func ParseLSHW(output []byte) (HardwareFacts, error) {
	var root lshwNode
	if err := xml.NewDecoder(bytes.NewReader(output)).Decode(&root); err != nil {
		return HardwareFacts{}, fmt.Errorf("invalid lshw data: %w", err)
	}

	facts := HardwareFacts{}
	root.walk(func(n *lshwNode) bool {
		if n.Class != "processor" {
			return true
		}
		if n.Disabled != "true" {
			facts.CPUCount += n.logicalCPUs()
			if hz := n.speedHz(); hz/1_000_000 > int64(facts.CPUSpeed) {
				facts.CPUSpeed = int(hz / 1_000_000)
			}
		}
		return false
	})

	var memoryBytes int64
	root.walk(func(n *lshwNode) bool {
		if !n.isMemory() {
			return true
		}
		size, ok := n.sizeBytes()
		if !ok {
			return true
		}
		memoryBytes += size
		return false
	})
	facts.Memory = memoryBytes / (1 << 20)

	return facts, nil
}

// walk visits n and its descendants depth first. Returning false from fn skips
// the children of the visited node.
func (n *lshwNode) walk(fn func(*lshwNode) bool) {
	if n.XMLName.Local == "node" && !fn(n) {
		return
	}
	for i := range n.Children {
		n.Children[i].walk(fn)
	}
}

// logicalCPUs counts threads, falling back to enabled cores, cores and finally
// the socket itself.
func (n *lshwNode) logicalCPUs() int {
	for _, key := range []string{"threads", "enabledcores", "cores"} {
		if v, err := strconv.Atoi(n.setting(key)); err == nil && v > 0 {
			return v
		}
	}
	return 1
}

func (n *lshwNode) speedHz() int64 {
	if n.Capacity != nil {
		if hz := n.Capacity.int64(); hz > 0 {
			return hz
		}
	}
	if n.Size != nil {
		return n.Size.int64()
	}
	return 0
}

func (n *lshwNode) setting(id string) string {
	for _, s := range n.Settings {
		if s.ID == id {
			return s.Value
		}
	}
	return ""
}

// isMemory reports whether n describes RAM. lshw also files firmware and CPU
// caches under the memory class.
func (n *lshwNode) isMemory() bool {
	if n.Class != "memory" && (n.Class != "" || n.ID != "memory") {
		return false
	}
	return n.ID != "firmware" && !strings.HasPrefix(n.ID, "cache")
}

// sizeBytes returns the direct size of n when it is given in bytes.
func (n *lshwNode) sizeBytes() (int64, bool) {
	if n.Size == nil || (n.Size.Units != "" && n.Size.Units != "bytes") {
		return 0, false
	}
	return n.Size.int64(), true
}

func (q *lshwQuantity) int64() int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(q.Value), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// UpdateHardwareDetails stores CPU and memory facts from lshw output.
func UpdateHardwareDetails(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
	if exitStatus != 0 {
		return nil
	}
	facts, err := ParseLSHW(output)
	if err != nil {
		env.Logger.ErrorContext(ctx, "Invalid lshw data", "error", err)
		return nil
	}

	node.CPUCount = facts.CPUCount
	node.CPUSpeed = facts.CPUSpeed
	node.Memory = facts.Memory
	saved, err := env.Repos.Nodes.Save(ctx, *node)
	if err != nil {
		return err
	}
	*node = saved
	return nil
}
