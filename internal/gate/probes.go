package gate

import (
	"context"
	stdnet "net"
	"os"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/net"
)

// interfaceProbe checks for an assigned non-loopback IPv4 address.
type interfaceProbe struct{}

func (p *interfaceProbe) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		log.Warn("interface enumeration failed", "error", err)
		return false
	}

	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseAddr(addr.Addr)
			if ip == nil || ip.To4() == nil {
				continue
			}
			if !ip.IsLoopback() && !ip.IsLinkLocalUnicast() {
				return true
			}
		}
	}
	return false
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func parseAddr(addr string) stdnet.IP {
	// Interface addresses come back in CIDR form ("192.168.1.10/24").
	if ip, _, err := stdnet.ParseCIDR(addr); err == nil {
		return ip
	}
	return stdnet.ParseIP(addr)
}

// timesyncProbe queries the system time-sync service. It prefers ntpd's
// peer report when ntpd is installed, otherwise asks timedatectl.
type timesyncProbe struct{}

func (p *timesyncProbe) Synced() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if _, err := os.Stat("/usr/sbin/ntpd"); err == nil {
		return ntpdSynced(ctx)
	}
	return timedatectlSynced(ctx)
}

// ntpdSynced reports true when ntpq lists a selected peer (the line
// starting with '*').
func ntpdSynced(ctx context.Context) bool {
	output, err := exec.CommandContext(ctx, "ntpq", "-p").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "*") {
			return true
		}
	}
	return false
}

func timedatectlSynced(ctx context.Context) bool {
	output, err := exec.CommandContext(ctx, "timedatectl", "show", "--property=NTPSynchronized", "--value").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "yes"
}

// hostInfoProbe reports the kernel architecture via gopsutil.
type hostInfoProbe struct{}

// NewPlatformProbe returns the default platform probe.
func NewPlatformProbe() PlatformProbe {
	return &hostInfoProbe{}
}

func (p *hostInfoProbe) KernelArch() string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Warn("host info query failed", "error", err)
		return ""
	}
	return info.KernelArch
}
