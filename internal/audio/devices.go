package audio

import (
	"fmt"
	"io"
	"sort"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio device in a Go-friendly way.
type Device struct {
	Name            string
	HostAPI         string
	MaxInput        int
	MaxOutput       int
	DefaultSampleHz float64
	IsDefaultInput  bool
	IsDefaultOutput bool
}

// Duplex reports whether the device can both capture and play.
func (d Device) Duplex() bool { return d.MaxInput > 0 && d.MaxOutput > 0 }

// ListDevices returns all devices across host APIs sorted by host and name.
func ListDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultIn, defaultOut := -1, -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultIn = def.Index
	}
	if def, err := portaudio.DefaultOutputDevice(); err == nil && def != nil {
		defaultOut = def.Index
	}

	var devices []Device
	for _, host := range hosts {
		for _, d := range host.Devices {
			devices = append(devices, Device{
				Name:            d.Name,
				HostAPI:         host.Name,
				MaxInput:        d.MaxInputChannels,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				IsDefaultInput:  d.Index == defaultIn,
				IsDefaultOutput: d.Index == defaultOut,
			})
		}
	}
	SortDevices(devices)
	return devices, nil
}

// SortDevices orders devices by host API, then name.
func SortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
}

// WriteDevices prints one device per line with its capabilities. Devices
// that can run a pass-through stream on their own are tagged duplex.
func WriteDevices(w io.Writer, devices []Device) error {
	for _, d := range devices {
		marker := " "
		switch {
		case d.IsDefaultInput && d.IsDefaultOutput:
			marker = "*"
		case d.IsDefaultInput:
			marker = "<"
		case d.IsDefaultOutput:
			marker = ">"
		}
		duplex := ""
		if d.Duplex() {
			duplex = " duplex"
		}
		if _, err := fmt.Fprintf(w, "%s [%s] %s (in:%d out:%d @ %.0f Hz)%s\n",
			marker, d.HostAPI, d.Name, d.MaxInput, d.MaxOutput, d.DefaultSampleHz, duplex); err != nil {
			return err
		}
	}
	return nil
}
