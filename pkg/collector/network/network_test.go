package network

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueless-admin/cladm/pkg/response"
)

func TestHexToIPv4(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0100007F", "127.0.0.1"},
		{"00000000", "0.0.0.0"},
		{"0101A8C0", "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := hexToIPv4(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := hexToIPv4("0100")
	assert.Error(t, err)
}

func TestHexToIPv6(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"all zeros", "00000000000000000000000000000000", "::"},
		// ::1 stored as little-endian chunks: the final 32-bit chunk holds
		// 0x01000000.
		{"loopback", "00000000000000000000000001000000", "::1"},
		{"v4 mapped loopback", "0000000000000000FFFF00000100007F", "::ffff:127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hexToIPv6(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := hexToIPv6("00")
	assert.Error(t, err)
}

const sampleTCPTable = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 0100007F:0016 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 12345 1 0000000000000000 100 0 0 10 0
   1: 0101A8C0:01BB 0100007F:D431 01 00000000:00000000 00:00000000 00000000  1000        0 67890 1 0000000000000000 20 4 30 10 -1
   2: malformed line
`

func writeProcNet(t *testing.T, root, table, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	path := filepath.Join(root, table)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSocketTable(t *testing.T) {
	root := t.TempDir()
	path := writeProcNet(t, root, "tcp", sampleTCPTable)

	sockets, err := parseSocketTable(path, false)
	require.NoError(t, err)
	require.Len(t, sockets, 2, "malformed line must be skipped")

	assert.Equal(t, "127.0.0.1", sockets[0].LocalIP)
	assert.Equal(t, 22, sockets[0].LocalPort)
	assert.Equal(t, "0.0.0.0", sockets[0].RemoteIP)
	assert.Equal(t, 0, sockets[0].RemotePort)
	assert.Equal(t, "0A", sockets[0].State)
	assert.Equal(t, "12345", sockets[0].Inode)

	assert.Equal(t, "192.168.1.1", sockets[1].LocalIP)
	assert.Equal(t, 443, sockets[1].LocalPort)
	assert.Equal(t, 54321, sockets[1].RemotePort)
}

func TestSocketSnapshotMissingTable(t *testing.T) {
	c := &Collector{ProcNetRoot: t.TempDir()}
	env := c.TCPSockets(context.Background())

	require.Equal(t, response.StatusFailure, env.Status)
	assert.Equal(t, response.CodeIOFailure, env.Error.Code)
}

func TestInterfaces(t *testing.T) {
	root := t.TempDir()
	stats := filepath.Join(root, "eth0", "statistics")
	require.NoError(t, os.MkdirAll(stats, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stats, "rx_bytes"), []byte("12345\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stats, "tx_bytes"), []byte("678\n"), 0o644))
	// Interface without statistics still appears, with nil counters.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lo"), 0o755))

	c := &Collector{ClassNetRoot: root}
	env := c.Interfaces(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(interfaceData)
	require.Equal(t, 2, data.TotalInterfaces)

	byName := map[string]Interface{}
	for _, iface := range data.Interfaces {
		byName[iface.Name] = iface
	}
	require.NotNil(t, byName["eth0"].RxBytes)
	assert.Equal(t, int64(12345), *byName["eth0"].RxBytes)
	assert.Equal(t, int64(678), *byName["eth0"].TxBytes)
	assert.Nil(t, byName["lo"].RxBytes)
}

func TestARPTable(t *testing.T) {
	root := t.TempDir()
	writeProcNet(t, root, "arp", `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
short line
`)

	c := &Collector{ProcNetRoot: root}
	env := c.ARPTable(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(arpData)
	require.Equal(t, 1, data.Total)
	assert.Equal(t, "192.168.1.1", data.ARPEntries[0].IPAddress)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", data.ARPEntries[0].MACAddress)
	assert.Equal(t, "eth0", data.ARPEntries[0].Device)
}

func TestUnixSockets(t *testing.T) {
	root := t.TempDir()
	writeProcNet(t, root, "unix", `Num       RefCount Protocol Flags    Type St Inode Path
0000000000000000: 00000002 00000000 00010000 0001 01 12345 /run/systemd/private
0000000000000001: 00000002 00000000 00000000 0002 01 12346
`)

	c := &Collector{ProcNetRoot: root}
	env := c.UnixSockets(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(unixData)
	require.Equal(t, 2, data.Total)
	assert.Equal(t, "/run/systemd/private", data.Sockets[0].Path)
	assert.Equal(t, "12346", data.Sockets[1].Inode)
	assert.Empty(t, data.Sockets[1].Path)
}

func TestIPTablesFilterRequiresRoot(t *testing.T) {
	c := New()
	c.euid = func() int { return 1000 }

	env := c.IPTablesFilter(context.Background())
	require.Equal(t, response.StatusFailure, env.Status)
	assert.Equal(t, response.CodeExecutionFailure, env.Error.Code)
	assert.Contains(t, env.Error.Message, "root privileges")
}

func TestParseChain(t *testing.T) {
	specs := []string{
		"-P INPUT ACCEPT",
		"-A INPUT -i lo -j ACCEPT",
		"-A INPUT -p tcp -m tcp --dport 22 -j ACCEPT",
	}

	chain := parseChain("INPUT", specs)
	assert.Equal(t, "ACCEPT", chain.Policy)
	require.Len(t, chain.Rules, 2)
	assert.Equal(t, "-A INPUT -i lo -j ACCEPT", chain.Rules[0])
}
