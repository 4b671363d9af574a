// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package device discovers the local identity reported to the fleet
// services: the primary interface's IPv4 and MAC address plus the
// configured name, group and token.
package device

import (
	"context"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/models"
)

// InterfaceLister returns the host's network interfaces.
type InterfaceLister func(ctx context.Context) (psnet.InterfaceStatList, error)

// Discoverer builds a DeviceIdentity from configuration and the host.
type Discoverer struct {
	list     InterfaceLister
	hostname func() (string, error)
}

// NewDiscoverer uses gopsutil to enumerate interfaces.
func NewDiscoverer() *Discoverer {
	return &Discoverer{list: psnet.InterfacesWithContext, hostname: os.Hostname}
}

// Discover never fails: missing network data leaves IP and MAC empty and
// the id falls back to the hostname.
func (d *Discoverer) Discover(ctx context.Context, cfg config.DeviceConfig) models.DeviceIdentity {
	id := models.DeviceIdentity{
		ID:    cfg.ID,
		Name:  cfg.Name,
		Group: cfg.Group,
		Token: cfg.AuthToken,
	}

	ifaces, err := d.list(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Cannot list network interfaces")
	}
	if iface, ip, ok := pickInterface(ifaces, cfg.Interface); ok {
		id.IP = ip
		id.MAC = strings.ToLower(iface.HardwareAddr)
		logging.Debug().Str("interface", iface.Name).Str("ip", ip).Msg("Primary interface selected")
	}

	if id.Name == "" {
		if h, err := d.hostname(); err == nil {
			id.Name = h
		}
	}
	if id.ID == "" {
		id.ID = id.MAC
	}
	if id.ID == "" {
		id.ID = id.Name
	}
	return id
}

// pickInterface returns the named interface, or the first one that is up,
// not loopback, has a MAC and an IPv4 address.
func pickInterface(ifaces psnet.InterfaceStatList, want string) (psnet.InterfaceStat, string, bool) {
	for _, iface := range ifaces {
		if want != "" && iface.Name != want {
			continue
		}
		if want == "" && (!slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") || iface.HardwareAddr == "") {
			continue
		}
		if ip := firstIPv4(iface.Addrs); ip != "" {
			return iface, ip, true
		}
	}
	return psnet.InterfaceStat{}, "", false
}

func firstIPv4(addrs psnet.InterfaceAddrList) string {
	for _, a := range addrs {
		ip, _, err := net.ParseCIDR(a.Addr)
		if err != nil {
			ip = net.ParseIP(a.Addr)
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

// String formats an identity for logs.
func String(id models.DeviceIdentity) string {
	return fmt.Sprintf("%s (%s) ip=%s mac=%s", id.Name, id.ID, id.IP, id.MAC)
}
