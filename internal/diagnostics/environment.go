// Package diagnostics checks whether the host environment can actually do
// what the server promises: cast discovery needs a multicast-capable
// network interface, and the music tools need a configured adapter URL.
package diagnostics

import "net"

var listInterfaces = net.Interfaces

type InterfaceStatus struct {
	Name      string `json:"name"`
	Multicast bool   `json:"multicast"`
}

type EnvironmentReport struct {
	Interfaces        []InterfaceStatus `json:"interfaces"`
	MulticastCapable  bool              `json:"multicast_capable"`
	AdapterConfigured bool              `json:"adapter_configured"`
}

// DetectEnvironment inspects the network interfaces available for mDNS
// discovery. Loopback and down interfaces are skipped; discovery cannot
// use them.
func DetectEnvironment(adapterURL string) EnvironmentReport {
	report := EnvironmentReport{
		AdapterConfigured: adapterURL != "",
	}

	ifaces, err := listInterfaces()
	if err != nil {
		return report
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		multicast := iface.Flags&net.FlagMulticast != 0
		report.Interfaces = append(report.Interfaces, InterfaceStatus{
			Name:      iface.Name,
			Multicast: multicast,
		})
		if multicast {
			report.MulticastCapable = true
		}
	}
	return report
}
