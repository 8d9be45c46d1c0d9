// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package sysinfo reports a summary of the host a process is running on.
package sysinfo

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// unknown is reported for a string field the host does not provide.
const unknown = "Unknown"

// Info is a summary of the host.
type Info struct {
	Hostname   string `json:"hostname"`
	OS         string `json:"os"`
	OSVersion  string `json:"osVersion"`
	SystemName string `json:"systemName"`
	CPU        CPU    `json:"cpu"`
	Memory     Memory `json:"memory"`
}

// CPU reports processor counts.
type CPU struct {
	Cores         int `json:"cores"` // logical
	PhysicalCores int `json:"physicalCores"`
}

// Memory reports memory sizes in bytes.
type Memory struct {
	Total     uint64 `json:"total"`
	Free      uint64 `json:"free"`
	Available uint64 `json:"available"`
}

// Get collects information about the current host. A missing string field is
// reported as "Unknown"; a core count that cannot be read is reported as 0.
// Get reports an error only if memory statistics are unavailable.
func Get(ctx context.Context) (*Info, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory stats: %w", err)
	}
	info := &Info{
		Hostname:   unknown,
		OS:         unknown,
		OSVersion:  unknown,
		SystemName: unknown,
		Memory: Memory{
			Total:     vm.Total,
			Free:      vm.Free,
			Available: vm.Available,
		},
	}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = orUnknown(hi.Hostname)
		info.OS = orUnknown(hi.Platform)
		info.OSVersion = orUnknown(hi.PlatformVersion)
		if hi.OS != "" && hi.KernelVersion != "" {
			info.SystemName = hi.OS + " " + hi.KernelVersion
		}
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPU.Cores = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.CPU.PhysicalCores = n
	}
	return info, nil
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// String renders a multi-line human-readable summary of i.
func (i *Info) String() string {
	return fmt.Sprintf(`Hostname: %s
OS: %s %s
System: %s
CPU cores: %d/%d
Memory: total - %s, free - %s, available - %s
`, i.Hostname, i.OS, i.OSVersion, i.SystemName,
		i.CPU.Cores, i.CPU.PhysicalCores,
		FormatSize(i.Memory.Total), FormatSize(i.Memory.Free), FormatSize(i.Memory.Available))
}

// FormatSize renders n bytes in the largest decimal (SI) unit in which the
// value is at least 1, with two fractional digits, for example "16.42 GB".
func FormatSize(n uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	v := float64(n)
	u := 0
	for v >= 1000 && u < len(units)-1 {
		v /= 1000
		u++
	}
	return fmt.Sprintf("%.2f %s", v, units[u])
}
