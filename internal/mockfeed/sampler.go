package mockfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/XDukeHD/nex-client/internal/client"
)

// Sampler produces the system part of a snapshot. The server fills in the
// audio players itself.
type Sampler interface {
	Sample(ctx context.Context) (client.Snapshot, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) (client.Snapshot, error)

func (f SamplerFunc) Sample(ctx context.Context) (client.Snapshot, error) { return f(ctx) }

// HostSampler reports the machine the mock feed runs on. Values gopsutil
// cannot read on this platform are left at zero. Wifi, battery, volume and
// backlight are fixed demo values.
type HostSampler struct {
	diskPath string
	log      *slog.Logger
}

// NewHostSampler samples disk usage of the filesystem holding diskPath.
func NewHostSampler(diskPath string, logger *slog.Logger) *HostSampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HostSampler{diskPath: diskPath, log: logger}
}

func (h *HostSampler) Sample(ctx context.Context) (client.Snapshot, error) {
	snap := client.Snapshot{
		Wifi:      client.WifiStatus{SSID: "nex-demo", Connected: true},
		Battery:   client.BatteryStatus{Percentage: 100, PluggedIn: true},
		Volume:    50,
		Backlight: 80,
	}

	var errs []error
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryBytes = float64(vm.Used)
	} else {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}

	// A zero interval compares against the previous call instead of
	// sleeping.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		snap.CPUAbsolute = pct[0]
	} else if err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	}

	if up, err := host.UptimeWithContext(ctx); err == nil {
		snap.Uptime = float64(up)
	} else {
		errs = append(errs, fmt.Errorf("uptime: %w", err))
	}

	if usage, err := disk.UsageWithContext(ctx, h.diskPath); err == nil {
		snap.DiskBytes = float64(usage.Used)
	} else {
		errs = append(errs, fmt.Errorf("disk: %w", err))
	}

	if counters, err := psnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		snap.Network = client.NetworkStats{
			RxBytes: float64(counters[0].BytesRecv),
			TxBytes: float64(counters[0].BytesSent),
		}
	} else if err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	}

	if len(errs) == 5 {
		return client.Snapshot{}, errors.Join(errs...)
	}
	for _, err := range errs {
		h.log.Debug("metric unavailable", "error", err)
	}
	return snap, nil
}
