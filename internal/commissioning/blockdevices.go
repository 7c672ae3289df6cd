package commissioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// BlockDeviceReport is one entry of the block device probe's JSON array.
// Numeric and boolean fields arrive either as JSON scalars or as strings.
type BlockDeviceReport struct {
	Name      string     `json:"NAME"`
	Path      string     `json:"PATH"`
	IDPath    string     `json:"ID_PATH"`
	Size      flexInt    `json:"SIZE"`
	BlockSize flexInt    `json:"BLOCK_SIZE"`
	Model     string     `json:"MODEL"`
	Serial    string     `json:"SERIAL"`
	ReadOnly  flexBool   `json:"RO"`
	Removable flexBool   `json:"RM"`
	Rotary    flexBool   `json:"ROTA"`
	SATA      flexBool   `json:"SATA"`
	RPM       flexString `json:"RPM"`
}

type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("expected an integer, got %s", data)
	}
	*f = flexInt(v)
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "1", "true", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexString(strings.Trim(s, `"`))
	return nil
}

// ParseBlockDevices decodes block device probe output.
func ParseBlockDevices(output []byte) ([]BlockDeviceReport, error) {
	var reports []BlockDeviceReport
	if err := json.Unmarshal(output, &reports); err != nil {
		return nil, fmt.Errorf("invalid block device data: %w", err)
	}
	return reports, nil
}

// Tags derives the device tags from the probe flags.
func (r BlockDeviceReport) Tags() []string {
	tags := []string{}
	if r.Rotary {
		tags = append(tags, "rotary")
		if rpm, err := strconv.Atoi(string(r.RPM)); err == nil && rpm > 0 {
			tags = append(tags, fmt.Sprintf("%drpm", rpm))
		}
	} else {
		tags = append(tags, "ssd")
	}
	if r.Removable {
		tags = append(tags, "removable")
	}
	if r.SATA {
		tags = append(tags, "sata")
	}
	return tags
}

func (r BlockDeviceReport) hasIdentity() bool {
	return r.Model != "" && r.Serial != ""
}

func isLoopDevice(idPath string) bool {
	return strings.HasPrefix(idPath, "/dev/loop")
}

// UpdateBlockDevices reconciles the node's block devices against the probe.
// Devices are matched by model and serial, or by name when either is blank,
// so identity survives renames. Unreported devices are deleted.
func UpdateBlockDevices(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
	if exitStatus != 0 || node.SkipStorage {
		return nil
	}
	reports, err := ParseBlockDevices(output)
	if err != nil {
		env.Logger.ErrorContext(ctx, "Invalid block device data", "error", err)
		return nil
	}

	repo := env.Repos.BlockDevices
	previous, err := repo.FindByNodeID(ctx, node.ID)
	if err != nil {
		return err
	}
	claimed := make(map[int64]bool, len(previous))

	match := func(r BlockDeviceReport) *domain.BlockDevice {
		for i := range previous {
			dev := &previous[i]
			if claimed[dev.ID] {
				continue
			}
			if r.hasIdentity() {
				if dev.Model == r.Model && dev.Serial == r.Serial {
					return dev
				}
			} else if dev.Name == r.Name {
				return dev
			}
		}
		return nil
	}

	for _, r := range reports {
		if r.Name == "" {
			continue
		}
		idPath := r.IDPath
		if idPath == "" {
			idPath = "/dev/" + r.Name
		}
		if int64(r.Size) < env.MinBlockDeviceSize || isLoopDevice(idPath) {
			env.Logger.DebugContext(ctx, "skipping block device", "name", r.Name, "size", int64(r.Size), "id_path", idPath)
			continue
		}

		device := domain.BlockDevice{NodeID: node.ID}
		if existing := match(r); existing != nil {
			claimed[existing.ID] = true
			device = *existing
		}
		device.Name = r.Name
		device.Path = r.Path
		if device.Path == "" {
			device.Path = "/dev/" + r.Name
		}
		device.IDPath = idPath
		device.Size = int64(r.Size)
		device.BlockSize = int64(r.BlockSize)
		device.Model = r.Model
		device.Serial = r.Serial
		device.Tags = r.Tags()

		saved, err := repo.Save(ctx, device)
		if err != nil {
			return err
		}
		claimed[saved.ID] = true
	}

	for _, dev := range previous {
		if claimed[dev.ID] {
			continue
		}
		if err := repo.DeleteByID(ctx, dev.ID); err != nil {
			return err
		}
		if node.BootDiskID != nil && *node.BootDiskID == dev.ID {
			node.BootDiskID = nil
		}
	}
	return nil
}
