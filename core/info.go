// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"

	"github.com/devblok/vkboot/gfx"
)

// AdapterInfo summarizes a physical adapter.
type AdapterInfo struct {
	Name          string   `json:"name"`
	VendorID      uint32   `json:"vendorId"`
	DeviceID      uint32   `json:"deviceId"`
	DriverVersion uint32   `json:"driverVersion"`
	Type          string   `json:"type"`
	QueueFamilies int      `json:"queueFamilies"`
	Graphics      bool     `json:"graphics"`
	Extensions    []string `json:"extensions"`

	// Invalid is set when some of the adapter could not be queried.
	Invalid bool `json:"invalid,omitempty"`
}

// DescribeAdapters creates a surfaceless instance and reports
// every adapter it exposes.
func DescribeAdapters(drv gfx.Driver, cfg InstanceConfiguration) ([]AdapterInfo, error) {
	instance, err := drv.CreateInstance(gfx.InstanceInfo{
		ApplicationName:    cfg.ApplicationName,
		ApplicationVersion: cfg.ApplicationVersion,
		EngineName:         cfg.EngineName,
		EngineVersion:      cfg.EngineVersion,
		APIVersion:         cfg.APIVersion,
		Extensions:         cfg.Extensions,
	})
	if err != nil {
		return nil, Wrap(ErrInstanceCreation, err, "create instance")
	}
	defer drv.DestroyInstance(instance)

	adapters, err := drv.EnumerateAdapters(instance)
	if err != nil {
		return nil, Wrap(ErrNoAdaptersFound, err, "enumerate adapters")
	}

	infos := make([]AdapterInfo, len(adapters))
	for i, adapter := range adapters {
		info := &infos[i]
		if props, err := drv.AdapterProperties(adapter); err == nil {
			info.Name = props.Name
			info.VendorID = props.VendorID
			info.DeviceID = props.DeviceID
			info.DriverVersion = props.DriverVersion
			info.Type = props.Type.String()
		} else {
			info.Invalid = true
		}

		if families, err := drv.QueueFamilies(adapter); err == nil {
			info.QueueFamilies = len(families)
			for _, f := range families {
				info.Graphics = info.Graphics || f.Flags&gfx.QueueGraphics != 0
			}
		} else {
			info.Invalid = true
		}

		if exts, err := drv.DeviceExtensions(adapter); err == nil {
			info.Extensions = exts
		} else {
			info.Invalid = true
		}
	}
	if len(infos) == 0 {
		return infos, errors.WithStack(ErrNoAdaptersFound)
	}
	return infos, nil
}
