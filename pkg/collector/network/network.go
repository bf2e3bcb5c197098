// Package network snapshots socket tables, interfaces, the ARP cache, and
// the iptables filter table.
package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
)

// Collector reads the kernel networking interfaces. Roots are swappable for
// tests.
type Collector struct {
	ProcNetRoot  string
	ClassNetRoot string

	// euid is swapped out in tests of the iptables privilege gate.
	euid func() int
}

// New returns a collector reading the real /proc/net and /sys/class/net.
func New() *Collector {
	return &Collector{
		ProcNetRoot:  "/proc/net",
		ClassNetRoot: "/sys/class/net",
		euid:         os.Geteuid,
	}
}

// Kinds lists the snapshot kinds of the networking monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "tcp_sockets", Func: c.TCPSockets},
		{Name: "udp_sockets", Func: c.UDPSockets},
		{Name: "tcp6_sockets", Func: c.TCP6Sockets},
		{Name: "udp6_sockets", Func: c.UDP6Sockets},
		{Name: "network_interfaces", Func: c.Interfaces},
		{Name: "arp_table", Func: c.ARPTable},
		{Name: "unix_sockets", Func: c.UnixSockets},
		{Name: "iptables_filter", Func: c.IPTablesFilter},
	}
}

type socketData struct {
	Protocol string   `json:"protocol"`
	Total    int      `json:"total"`
	Sockets  []Socket `json:"sockets"`
}

// TCPSockets lists IPv4 TCP sockets from /proc/net/tcp.
func (c *Collector) TCPSockets(ctx context.Context) *response.Envelope {
	return c.socketSnapshot("TCP_SOCKETS_V4", "tcp", false)
}

// UDPSockets lists IPv4 UDP sockets from /proc/net/udp.
func (c *Collector) UDPSockets(ctx context.Context) *response.Envelope {
	return c.socketSnapshot("UDP_SOCKETS_V4", "udp", false)
}

// TCP6Sockets lists IPv6 TCP sockets from /proc/net/tcp6.
func (c *Collector) TCP6Sockets(ctx context.Context) *response.Envelope {
	return c.socketSnapshot("TCP_SOCKETS_V6", "tcp6", true)
}

// UDP6Sockets lists IPv6 UDP sockets from /proc/net/udp6.
func (c *Collector) UDP6Sockets(ctx context.Context) *response.Envelope {
	return c.socketSnapshot("UDP_SOCKETS_V6", "udp6", true)
}

func (c *Collector) socketSnapshot(subtype, table string, ipv6 bool) *response.Envelope {
	path := filepath.Join(c.ProcNetRoot, table)
	sockets, err := parseSocketTable(path, ipv6)
	if err != nil {
		if os.IsNotExist(err) {
			return response.Failure(response.TaskTypeState, subtype, response.CodeIOFailure, fmt.Sprintf("%s not available: %v", path, err))
		}
		return response.Failure(response.TaskTypeState, subtype, response.CodeExecutionFailure, fmt.Sprintf("error parsing %s: %v", path, err))
	}

	return response.Success(response.TaskTypeState, subtype, socketData{
		Protocol: table,
		Total:    len(sockets),
		Sockets:  sockets,
	})
}

// Interface is one entry under /sys/class/net. Byte counters are nil when
// the statistics files are unreadable.
type Interface struct {
	Name    string `json:"name"`
	RxBytes *int64 `json:"rx_bytes"`
	TxBytes *int64 `json:"tx_bytes"`
}

type interfaceData struct {
	TotalInterfaces int         `json:"total_interfaces"`
	Interfaces      []Interface `json:"interfaces"`
}

// Interfaces enumerates network interfaces and their RX/TX byte counters.
func (c *Collector) Interfaces(ctx context.Context) *response.Envelope {
	const subtype = "NETWORK_INTERFACES"

	entries, err := os.ReadDir(c.ClassNetRoot)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtype, response.CodeIOFailure, fmt.Sprintf("error reading %s: %v", c.ClassNetRoot, err))
	}

	interfaces := make([]Interface, 0, len(entries))
	for _, e := range entries {
		ifacePath := filepath.Join(c.ClassNetRoot, e.Name())
		fi, err := os.Stat(ifacePath)
		if err != nil || !fi.IsDir() {
			continue
		}

		iface := Interface{Name: e.Name()}
		statsDir := filepath.Join(ifacePath, "statistics")
		iface.RxBytes = readCounter(filepath.Join(statsDir, "rx_bytes"))
		iface.TxBytes = readCounter(filepath.Join(statsDir, "tx_bytes"))
		interfaces = append(interfaces, iface)
	}

	return response.Success(response.TaskTypeState, subtype, interfaceData{
		TotalInterfaces: len(interfaces),
		Interfaces:      interfaces,
	})
}

func readCounter(path string) *int64 {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ARPEntry is one line of /proc/net/arp.
type ARPEntry struct {
	IPAddress  string `json:"ip_address"`
	HWType     string `json:"hw_type"`
	Flags      string `json:"flags"`
	MACAddress string `json:"mac_address"`
	Mask       string `json:"mask"`
	Device     string `json:"device"`
}

type arpData struct {
	Total      int        `json:"total"`
	ARPEntries []ARPEntry `json:"arp_entries"`
}

// ARPTable lists the kernel ARP cache.
func (c *Collector) ARPTable(ctx context.Context) *response.Envelope {
	const subtype = "ARP_TABLE"

	path := filepath.Join(c.ProcNetRoot, "arp")
	lines, err := readTableLines(path)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtype, response.CodeIOFailure, fmt.Sprintf("error reading %s: %v", path, err))
	}

	entries := make([]ARPEntry, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		entries = append(entries, ARPEntry{
			IPAddress:  fields[0],
			HWType:     fields[1],
			Flags:      fields[2],
			MACAddress: fields[3],
			Mask:       fields[4],
			Device:     fields[5],
		})
	}

	return response.Success(response.TaskTypeState, subtype, arpData{
		Total:      len(entries),
		ARPEntries: entries,
	})
}

// UnixSocket is one line of /proc/net/unix. Path is empty for unnamed
// sockets.
type UnixSocket struct {
	Num      string `json:"num"`
	RefCount string `json:"ref_count"`
	Protocol string `json:"protocol"`
	Flags    string `json:"flags"`
	Type     string `json:"type"`
	State    string `json:"state"`
	Inode    string `json:"inode"`
	Path     string `json:"path,omitempty"`
}

type unixData struct {
	Total   int          `json:"total"`
	Sockets []UnixSocket `json:"sockets"`
}

// UnixSockets lists unix domain sockets.
func (c *Collector) UnixSockets(ctx context.Context) *response.Envelope {
	const subtype = "UNIX_SOCKETS"

	path := filepath.Join(c.ProcNetRoot, "unix")
	lines, err := readTableLines(path)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtype, response.CodeIOFailure, fmt.Sprintf("error reading %s: %v", path, err))
	}

	sockets := make([]UnixSocket, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		s := UnixSocket{
			Num:      fields[0],
			RefCount: fields[1],
			Protocol: fields[2],
			Flags:    fields[3],
			Type:     fields[4],
			State:    fields[5],
			Inode:    fields[6],
		}
		if len(fields) > 7 {
			s.Path = fields[7]
		}
		sockets = append(sockets, s)
	}

	return response.Success(response.TaskTypeState, subtype, unixData{
		Total:   len(sockets),
		Sockets: sockets,
	})
}

// readTableLines returns the non-empty data lines of a /proc/net table,
// skipping the header line.
func readTableLines(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	all := strings.Split(string(raw), "\n")
	if len(all) <= 1 {
		return nil, nil
	}

	lines := make([]string, 0, len(all)-1)
	for _, line := range all[1:] {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
