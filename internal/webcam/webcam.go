// Package webcam discovers the video capture devices attached to the host.
package webcam

import (
	"fmt"
	"sort"

	"github.com/kartoza/kartoza-dualcam/internal/capture"
)

// HostCamera is a video capture device node found on the host.
type HostCamera struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// Device describes the camera the way the capture session sees devices.
// Host nodes carry no facing information, so the first is treated as the
// back camera and the rest as front.
func (c HostCamera) Device(index int) capture.Device {
	pos := capture.PositionFront
	if index == 0 {
		pos = capture.PositionBack
	}
	name := c.Name
	if name == "" {
		name = c.ID
	}
	return capture.Device{
		ID:       c.ID,
		Name:     name,
		Kind:     capture.DeviceCamera,
		Position: pos,
		MinZoom:  1,
		MaxZoom:  1,
	}
}

// Devices scans the host and converts every camera found.
func Devices() ([]capture.Device, error) {
	cams, err := Scan()
	if err != nil {
		return nil, err
	}
	devices := make([]capture.Device, 0, len(cams))
	for i, c := range cams {
		devices = append(devices, c.Device(i))
	}
	return devices, nil
}

func sortCameras(cams []HostCamera) {
	sort.Slice(cams, func(i, j int) bool {
		var a, b int
		fmt.Sscanf(cams[i].ID, "video%d", &a)
		fmt.Sscanf(cams[j].ID, "video%d", &b)
		return a < b
	})
}
