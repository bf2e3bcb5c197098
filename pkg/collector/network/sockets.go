package network

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// Socket is one row of a /proc/net socket table. State keeps the kernel's
// raw hex value.
type Socket struct {
	LocalIP    string `json:"local_ip"`
	LocalPort  int    `json:"local_port"`
	RemoteIP   string `json:"remote_ip"`
	RemotePort int    `json:"remote_port"`
	State      string `json:"state"`
	Inode      string `json:"inode"`
}

// parseSocketTable parses /proc/net/{tcp,udp,tcp6,udp6}. Rows with fewer
// than 10 columns are skipped rather than failing the snapshot.
func parseSocketTable(path string, ipv6 bool) ([]Socket, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(raw), "\n")
	if len(lines) <= 1 {
		return []Socket{}, nil
	}

	sockets := make([]Socket, 0, len(lines)-1)
	for _, line := range lines[1:] { // skip header
		cols := strings.Fields(strings.TrimSpace(line))
		if len(cols) < 10 {
			continue
		}

		local, err := splitHexAddr(cols[1])
		if err != nil {
			continue
		}
		remote, err := splitHexAddr(cols[2])
		if err != nil {
			continue
		}

		s := Socket{
			State: cols[3],
			Inode: cols[9],
		}

		if ipv6 {
			s.LocalIP, err = hexToIPv6(local.addr)
		} else {
			s.LocalIP, err = hexToIPv4(local.addr)
		}
		if err != nil {
			continue
		}
		if ipv6 {
			s.RemoteIP, err = hexToIPv6(remote.addr)
		} else {
			s.RemoteIP, err = hexToIPv4(remote.addr)
		}
		if err != nil {
			continue
		}

		s.LocalPort = local.port
		s.RemotePort = remote.port
		sockets = append(sockets, s)
	}

	return sockets, nil
}

type hexAddr struct {
	addr string
	port int
}

// splitHexAddr splits "0100007F:0016" into its address and port halves.
// Ports are big-endian hex.
func splitHexAddr(col string) (hexAddr, error) {
	addr, portHex, ok := strings.Cut(col, ":")
	if !ok {
		return hexAddr{}, fmt.Errorf("malformed address column %q", col)
	}
	port, err := strconv.ParseInt(portHex, 16, 32)
	if err != nil {
		return hexAddr{}, fmt.Errorf("malformed port in %q: %w", col, err)
	}
	return hexAddr{addr: addr, port: int(port)}, nil
}

// hexToIPv4 decodes the kernel's little-endian 8-hex-char IPv4 encoding:
// "0100007F" is 127.0.0.1.
func hexToIPv4(h string) (string, error) {
	if len(h) != 8 {
		return "", fmt.Errorf("ipv4 hex address %q: want 8 chars", h)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d.%d", b[3], b[2], b[1], b[0]), nil
}

// hexToIPv6 decodes the kernel's 32-hex-char IPv6 encoding: four 32-bit
// chunks, each little-endian, concatenated. The result is formatted with
// RFC 5952 zero-run compression (longest all-zero run collapsed to "::",
// leftmost run on ties).
func hexToIPv6(h string) (string, error) {
	if len(h) != 32 {
		return "", fmt.Errorf("ipv6 hex address %q: want 32 chars", h)
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", err
	}

	var b [16]byte
	for chunk := 0; chunk < 4; chunk++ {
		for i := 0; i < 4; i++ {
			b[chunk*4+i] = raw[chunk*4+(3-i)]
		}
	}

	return netip.AddrFrom16(b).String(), nil
}
