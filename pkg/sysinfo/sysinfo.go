// Package sysinfo snapshots host state for alert context. Every probe is
// best effort; a failed read leaves its field zero rather than failing the
// snapshot.
package sysinfo

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/types"
	"github.com/worklens/desktop-agent/internal/version"
)

// Snapshot collects the current host context.
func Snapshot(log *logrus.Logger) types.SystemContext {
	ctx := types.SystemContext{
		AgentVersion: version.Version,
	}

	if info, err := host.Info(); err == nil {
		ctx.Hostname = info.Hostname
		ctx.Platform = info.Platform
		ctx.OSVersion = info.PlatformVersion
		ctx.UptimeSeconds = info.Uptime
	} else {
		log.WithError(err).Debug("Failed to read host info")
	}

	if n, err := cpu.Counts(true); err == nil {
		ctx.CPUCount = n
	} else {
		log.WithError(err).Debug("Failed to read CPU count")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		ctx.MemUsedPercent = vm.UsedPercent
	} else {
		log.WithError(err).Debug("Failed to read memory stats")
	}

	return ctx
}
