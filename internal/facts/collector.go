package facts

import (
	"context"
	"errors"
	"fmt"
	stdnet "net"
	"os/user"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/net"
)

// ErrNoActiveAdapter is returned when no interface qualifies as the active one.
var ErrNoActiveAdapter = errors.New("no active network adapter found")

const unknown = "Unknown"

// SystemCollector reads facts from the running machine through gopsutil
// and the platform's hardware inventory.
type SystemCollector struct {
	log zerolog.Logger
}

// NewSystemCollector creates a collector for the local machine.
func NewSystemCollector(log zerolog.Logger) *SystemCollector {
	return &SystemCollector{log: log}
}

// Collect gathers the full record. UserName is the OS login user; callers
// that keep an operator-configured name should prefer their own value.
func (c *SystemCollector) Collect(ctx context.Context) (Record, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("read host info: %w", err)
	}

	id, err := hardwareUUID(ctx, info.HostID)
	if err != nil {
		return Record{}, fmt.Errorf("read hardware uuid: %w", err)
	}

	model, err := modelName(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Model name unavailable")
		model = unknown
	}

	login, err := loginUser()
	if err != nil {
		return Record{}, fmt.Errorf("read login user: %w", err)
	}

	nw, err := c.Network(ctx)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		UUID:      id,
		UserName:  login,
		OS:        osName(info),
		OSVersion: info.PlatformVersion,
		ModelName: model,
	}.WithNetwork(nw)

	c.log.Debug().
		Str("uuid", rec.UUID).
		Str("model", rec.ModelName).
		Str("os", rec.OS).
		Str("os_version", rec.OSVersion).
		Str("login_user", rec.UserName).
		Msg("Host facts collected")

	return rec, nil
}

// Network detects the active adapter.
func (c *SystemCollector) Network(ctx context.Context) (Network, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return Network{}, fmt.Errorf("list network interfaces: %w", err)
	}

	nw, name, err := selectAdapter(ifaces)
	if err != nil {
		return Network{}, err
	}

	c.log.Debug().
		Str("interface", name).
		Str("ip", nw.IPAddress).
		Str("mac", nw.MACAddress).
		Str("type", nw.NetworkType).
		Msg("Active network adapter detected")

	return nw, nil
}

// selectAdapter returns the first interface that is up, not loopback, has a
// MAC address, and carries a routable IPv4 address (not 127/8, not 169.254/16).
func selectAdapter(ifaces []net.InterfaceStat) (Network, string, error) {
	for _, iface := range ifaces {
		if iface.HardwareAddr == "" {
			continue
		}
		if hasFlag(iface.Flags, "loopback") {
			continue
		}
		if len(iface.Flags) > 0 && !hasFlag(iface.Flags, "up") {
			continue
		}

		for _, addr := range iface.Addrs {
			ip := parseIP(addr.Addr)
			if ip == nil || ip.To4() == nil {
				continue
			}
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			return Network{
				IPAddress:   ip.String(),
				MACAddress:  iface.HardwareAddr,
				NetworkType: DetectNetworkType(iface.Name),
			}, iface.Name, nil
		}
	}
	return Network{}, "", ErrNoActiveAdapter
}

// DetectNetworkType classifies an interface by name: wireless names map to
// Wi-Fi, everything else to Ethernet.
func DetectNetworkType(name string) string {
	lower := strings.ToLower(name)
	for _, marker := range []string{"wi-fi", "wifi", "wireless", "wlan"} {
		if strings.Contains(lower, marker) {
			return WiFi
		}
	}
	// systemd predictable names: wlp2s0, wlo1, wlx...
	if strings.HasPrefix(lower, "wl") {
		return WiFi
	}
	return Ethernet
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func parseIP(addr string) stdnet.IP {
	if ip, _, err := stdnet.ParseCIDR(addr); err == nil {
		return ip
	}
	return stdnet.ParseIP(addr)
}

func osName(info *host.InfoStat) string {
	if info.Platform != "" {
		return info.Platform
	}
	if info.OS != "" {
		return info.OS
	}
	return unknown
}

func loginUser() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	name := u.Username
	// DOMAIN\user on Windows
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return name, nil
}
