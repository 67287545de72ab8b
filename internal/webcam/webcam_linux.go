//go:build linux

package webcam

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Roots of the V4L2 sysfs class and the device nodes; tests point them elsewhere.
var (
	sysRoot = "/sys/class/video4linux"
	devRoot = "/dev"
)

// Scan lists the V4L2 capture nodes with their driver-reported names.
func Scan() ([]HostCamera, error) {
	entries, err := os.ReadDir(sysRoot)
	if err != nil {
		return nil, fmt.Errorf("no webcam devices found: %w", err)
	}

	var cams []HostCamera
	for _, e := range entries {
		id := e.Name()
		if !strings.HasPrefix(id, "video") {
			continue
		}
		path := filepath.Join(devRoot, id)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		name, _ := os.ReadFile(filepath.Join(sysRoot, id, "name"))
		cams = append(cams, HostCamera{
			ID:   id,
			Path: path,
			Name: strings.TrimSpace(string(name)),
		})
	}
	if len(cams) == 0 {
		return nil, fmt.Errorf("no webcam devices found")
	}
	sortCameras(cams)
	return cams, nil
}
