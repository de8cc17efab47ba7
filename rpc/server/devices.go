package server

import (
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
)

// Device is a simulated device holding named parameter registers
type Device struct {
	name   string
	params *xsync.MapOf[string, any]
}

// Name returns the device name
func (d *Device) Name() string {
	return d.name
}

// Read returns the values of the given parameters, unset ones read as 0
func (d *Device) Read(names []string) map[string]any {
	values := make(map[string]any, len(names))
	for _, name := range names {
		v, ok := d.params.Load(name)
		if !ok {
			v = 0
		}
		values[name] = v
	}
	return values
}

// Write stores the given parameter values
func (d *Device) Write(values map[string]any) {
	for name, v := range values {
		d.params.Store(name, v)
	}
}

// DeviceRegistry holds the devices of a simulator, it is safe for concurrent use
type DeviceRegistry struct {
	devices *xsync.MapOf[string, *Device]
}

// NewDeviceRegistry creates a registry with the given devices and initial values
func NewDeviceRegistry(initial map[string]map[string]any) *DeviceRegistry {
	r := &DeviceRegistry{devices: xsync.NewMapOf[string, *Device]()}
	for name, params := range initial {
		r.Add(name, params)
	}
	return r
}

// Add registers a device, an existing device with the same name is replaced
func (r *DeviceRegistry) Add(name string, params map[string]any) *Device {
	d := &Device{name: name, params: xsync.NewMapOf[string, any]()}
	d.Write(params)
	r.devices.Store(name, d)
	return d
}

// Load returns the device with the given name
func (r *DeviceRegistry) Load(name string) (*Device, bool) {
	return r.devices.Load(name)
}

// Names returns the sorted device names
func (r *DeviceRegistry) Names() []string {
	names := make([]string, 0, r.devices.Size())
	r.devices.Range(func(name string, _ *Device) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
