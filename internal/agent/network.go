package agent

import (
	"net"
	"sort"

	"github.com/coresight/coresight/internal/models"
)

func sortRates(rates []models.InterfaceRate) {
	sort.Slice(rates, func(i, j int) bool { return rates[i].Name < rates[j].Name })
}

// ListInterfaceIPs returns non-loopback IP addresses from active interfaces.
func ListInterfaceIPs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			s, ok := usableIP(addr)
			if !ok {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			ips = append(ips, s)
		}
	}
	sort.Strings(ips)
	return ips
}

func usableIP(addr net.Addr) (string, bool) {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return "", false
	}
	if ip == nil || ip.IsLoopback() || ip.IsMulticast() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return "", false
	}
	return ip.String(), true
}
