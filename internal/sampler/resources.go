package sampler

import (
	"context"
	"runtime"

	gomem "github.com/shirou/gopsutil/v4/mem"
	gonet "github.com/shirou/gopsutil/v4/net"
)

// System call wrappers for testing
var (
	virtualMemory = gomem.VirtualMemoryWithContext
	netInterfaces = gonet.InterfacesWithContext
	readMemStats  = runtime.ReadMemStats
)

const bytesPerMB = 1024 * 1024

// MemorySample holds process heap usage and host memory pressure.
type MemorySample struct {
	HeapMB      float64
	UsedPercent float64
	// HostKnown is false when host memory counters are unavailable.
	HostKnown bool
}

func sampleMemory(ctx context.Context) MemorySample {
	var ms runtime.MemStats
	readMemStats(&ms)
	sample := MemorySample{HeapMB: float64(ms.HeapAlloc) / bytesPerMB}

	if vm, err := virtualMemory(ctx); err == nil && vm != nil {
		sample.UsedPercent = vm.UsedPercent
		sample.HostKnown = true
	}
	return sample
}

// Online reports whether any non-loopback interface is up.
func Online(ctx context.Context) (bool, error) {
	ifaces, err := netInterfaces(ctx)
	if err != nil {
		return false, err
	}
	for _, iface := range ifaces {
		up, loopback := false, false
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if up && !loopback {
			return true, nil
		}
	}
	return false, nil
}
