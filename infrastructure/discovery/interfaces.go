package discovery

import (
	"net"
	"strings"
)

// virtualInterfacePrefixes is the full exclusion list from
// discovery.rs::disable_virtual_interfaces: VPN, virtualization, and
// container-networking interfaces that should never be used to advertise
// or browse for LAN peers.
var virtualInterfacePrefixes = []string{
	"vmnet", "vmware", "virtualbox", "vboxnet", "vethernet",
	"hyper-v", "wsl", "docker", "br-", "veth", "virbr",
	"lxcbr", "lxdbr", "podman", "cni", "flannel", "calico",
	"weave", "bluetooth", "tap-", "tun", "utun", "pptp",
	"ipsec", "wireguard", "wg", "nordlynx", "proton", "mullvad",
}

// isVirtualInterface reports whether name matches any excluded prefix,
// case-insensitively.
func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// usableInterfaces returns every multicast-capable, up interface that isn't
// on the virtual-interface exclusion list. Interfaces that fail to report
// flags are skipped rather than failing discovery entirely.
func usableInterfaces() []net.Interface {
	all, err := net.Interfaces()
	if err != nil {
		return nil
	}
	out := make([]net.Interface, 0, len(all))
	for _, iface := range all {
		if isVirtualInterface(iface.Name) {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		out = append(out, iface)
	}
	return out
}
