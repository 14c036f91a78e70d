// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vkboot/gfx"
)

// FamilyIndex is an optional queue family index.
type FamilyIndex struct {
	index uint32
	set   bool
}

// Family returns a FamilyIndex holding i.
func Family(i uint32) FamilyIndex {
	return FamilyIndex{index: i, set: true}
}

// Get returns the index and whether it is set.
func (f FamilyIndex) Get() (uint32, bool) {
	return f.index, f.set
}

// IsSet reports whether an index was resolved.
func (f FamilyIndex) IsSet() bool {
	return f.set
}

func (f FamilyIndex) String() string {
	if !f.set {
		return "none"
	}
	return fmt.Sprint(f.index)
}

// QueueFamilyIndices maps queue roles to the family serving them.
type QueueFamilyIndices struct {
	Graphics FamilyIndex
	Present  FamilyIndex
}

// Complete reports whether every role has a family.
func (q QueueFamilyIndices) Complete() bool {
	return q.Graphics.IsSet() && q.Present.IsSet()
}

// Shared reports whether both roles are served by the same family.
func (q QueueFamilyIndices) Shared() bool {
	return q.Complete() && q.Graphics.index == q.Present.index
}

// Unique returns the distinct resolved families, graphics first.
func (q QueueFamilyIndices) Unique() []uint32 {
	var out []uint32
	seen := make(map[uint32]struct{}, 2)
	for _, f := range []FamilyIndex{q.Graphics, q.Present} {
		if !f.set {
			continue
		}
		if _, ok := seen[f.index]; ok {
			continue
		}
		seen[f.index] = struct{}{}
		out = append(out, f.index)
	}
	return out
}

// AdapterCapabilities is what an adapter offers for a given surface.
type AdapterCapabilities struct {
	Adapter      gfx.Adapter
	Properties   gfx.AdapterProperties
	Families     []gfx.QueueFamily
	Extensions   []string
	Surface      gfx.SurfaceCapabilities
	Formats      []gfx.SurfaceFormat
	PresentModes []gfx.PresentMode
}

// SelectionPolicy sets the mandatory adapter capabilities.
type SelectionPolicy struct {
	RequiredExtensions []string
	RequireDiscrete    bool
}

// errRejected marks a candidate that fails a requirement.
type errRejected string

func (e errRejected) Error() string { return string(e) }

// ResolveQueueFamilies finds a graphics family and a family able to
// present to surface. The first graphics family is kept; lookup stops
// as soon as both roles are resolved.
func ResolveQueueFamilies(drv gfx.Driver, adapter gfx.Adapter, surface gfx.Surface) (QueueFamilyIndices, []gfx.QueueFamily, error) {
	var indices QueueFamilyIndices
	families, err := drv.QueueFamilies(adapter)
	if err != nil {
		return indices, nil, errors.Wrap(err, "query queue families")
	}

	for i, family := range families {
		idx := uint32(i)
		if !indices.Graphics.IsSet() && family.Flags&gfx.QueueGraphics != 0 {
			indices.Graphics = Family(idx)
		}
		if !indices.Present.IsSet() {
			supported, err := drv.SurfaceSupport(adapter, idx, surface)
			if err != nil {
				return indices, families, errors.Wrapf(err, "query present support of family %d", idx)
			}
			if supported {
				indices.Present = Family(idx)
			}
		}
		if indices.Complete() {
			break
		}
	}
	return indices, families, nil
}

// inspect runs the requirement checks on a single adapter, in order,
// stopping at the first failed one.
func inspect(drv gfx.Driver, adapter gfx.Adapter, surface gfx.Surface, policy SelectionPolicy) (AdapterCapabilities, QueueFamilyIndices, error) {
	caps := AdapterCapabilities{Adapter: adapter}

	props, err := drv.AdapterProperties(adapter)
	if err != nil {
		return caps, QueueFamilyIndices{}, errors.Wrap(err, "query properties")
	}
	caps.Properties = props

	indices, families, err := ResolveQueueFamilies(drv, adapter, surface)
	if err != nil {
		return caps, indices, err
	}
	caps.Families = families
	if !indices.Complete() {
		return caps, indices, errRejected(fmt.Sprintf("incomplete queue families (graphics %s, present %s)", indices.Graphics, indices.Present))
	}

	if policy.RequireDiscrete && props.Type != gfx.AdapterDiscrete {
		return caps, indices, errRejected("not a discrete adapter (" + props.Type.String() + ")")
	}

	extensions, err := drv.DeviceExtensions(adapter)
	if err != nil {
		return caps, indices, errors.Wrap(err, "query extensions")
	}
	caps.Extensions = extensions
	if missing := missingExtension(extensions, policy.RequiredExtensions); missing != "" {
		return caps, indices, errRejected("missing extension " + missing)
	}

	if caps.Surface, err = drv.SurfaceCapabilities(adapter, surface); err != nil {
		return caps, indices, errors.Wrap(err, "query surface capabilities")
	}
	if caps.Formats, err = drv.SurfaceFormats(adapter, surface); err != nil {
		return caps, indices, errors.Wrap(err, "query surface formats")
	}
	if caps.PresentModes, err = drv.PresentModes(adapter, surface); err != nil {
		return caps, indices, errors.Wrap(err, "query present modes")
	}
	if len(caps.Formats) == 0 || len(caps.PresentModes) == 0 {
		return caps, indices, errRejected("surface has no formats or present modes")
	}
	return caps, indices, nil
}

// missingExtension returns the first required name not in available.
func missingExtension(available, required []string) string {
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[name] = struct{}{}
	}
	for _, name := range required {
		if _, ok := set[name]; !ok {
			return name
		}
	}
	return ""
}

// SelectAdapter returns the first adapter, in driver order, that meets
// every requirement of policy for the given surface.
func SelectAdapter(drv gfx.Driver, instance gfx.Instance, surface gfx.Surface, policy SelectionPolicy, log logrus.FieldLogger) (AdapterCapabilities, QueueFamilyIndices, error) {
	adapters, err := drv.EnumerateAdapters(instance)
	if err != nil {
		return AdapterCapabilities{}, QueueFamilyIndices{}, Wrap(ErrNoAdaptersFound, err, "enumerate adapters")
	}
	if len(adapters) == 0 {
		return AdapterCapabilities{}, QueueFamilyIndices{}, ErrNoAdaptersFound
	}

	for i, adapter := range adapters {
		caps, indices, err := inspect(drv, adapter, surface, policy)
		entry := log.WithFields(logrus.Fields{"adapter": caps.Properties.Name, "index": i})
		switch err.(type) {
		case nil:
			entry.WithFields(logrus.Fields{
				"graphics": indices.Graphics,
				"present":  indices.Present,
				"type":     caps.Properties.Type,
			}).Info("selected adapter")
			return caps, indices, nil
		case errRejected:
			entry.WithField("reason", err).Debug("adapter rejected")
		default:
			entry.WithError(err).Warn("adapter skipped")
		}
	}
	return AdapterCapabilities{}, QueueFamilyIndices{}, errors.Wrapf(ErrNoSuitableAdapter, "%d adapters inspected", len(adapters))
}
