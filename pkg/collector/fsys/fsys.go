// Package fsys snapshots filesystem-level state: the open file descriptors
// of every process, the contents of watched directories, and the kernel's
// supported filesystem types mapped against /etc/fstab.
package fsys

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
)

const (
	subtypeFileDescriptors  = "FILE_DESCRIPTORS"
	subtypeKnownDirectories = "KNOWN_DIRECTORIES"
	subtypeFileSystems      = "FILE_SYSTEMS"
)

// DefaultDirectories is watched when no directory list file is given.
// Attackers commonly stage payloads in world-writable or device paths.
var DefaultDirectories = []string{"/dev", "/tmp", "/sys"}

// Collector reads filesystem state. Paths are swappable for tests.
type Collector struct {
	ProcRoot        string
	ProcFilesystems string
	FstabPath       string

	// DirectoryListFile holds newline-separated directories to watch; empty
	// means Directories (or DefaultDirectories) is used instead.
	DirectoryListFile string
	Directories       []string
}

// New returns a collector reading the real /proc and /etc/fstab.
func New(directoryListFile string) *Collector {
	return &Collector{
		ProcRoot:          "/proc",
		ProcFilesystems:   "/proc/filesystems",
		FstabPath:         "/etc/fstab",
		DirectoryListFile: directoryListFile,
	}
}

// Kinds lists the snapshot kinds of the filesystem monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "file_descriptors", Func: c.FileDescriptors},
		{Name: "known_directories", Func: c.KnownDirectories},
		{Name: "file_systems", Func: c.FileSystems},
	}
}

// FD is one entry of a process's fd table. Type is REG, DIR, or OTHER.
type FD struct {
	FD   int    `json:"fd"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// ProcessFDs holds the open descriptors of one process.
type ProcessFDs struct {
	PID     int  `json:"pid"`
	FDCount int  `json:"fd_count"`
	FDs     []FD `json:"fds"`
}

type fdData struct {
	TotalProcesses int          `json:"total_processes"`
	Processes      []ProcessFDs `json:"processes"`
}

// FileDescriptors walks /proc/<pid>/fd for every process. Processes that
// vanish or deny access mid-walk are skipped, not failed.
func (c *Collector) FileDescriptors(ctx context.Context) *response.Envelope {
	entries, err := os.ReadDir(c.ProcRoot)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeFileDescriptors, response.CodeIOFailure, fmt.Sprintf("failed to list %s: %v", c.ProcRoot, err))
	}

	processes := []ProcessFDs{}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		fdDir := filepath.Join(c.ProcRoot, entry.Name(), "fd")
		fdEntries, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}

		fds := []FD{}
		for _, fdEntry := range fdEntries {
			fd, err := strconv.Atoi(fdEntry.Name())
			if err != nil {
				continue
			}

			target, err := os.Readlink(filepath.Join(fdDir, fdEntry.Name()))
			if err != nil {
				fds = append(fds, FD{FD: fd, Type: "OTHER", Path: fmt.Sprintf("<unreadable: %v>", err)})
				continue
			}

			fds = append(fds, FD{FD: fd, Type: classifyTarget(target), Path: target})
		}

		processes = append(processes, ProcessFDs{PID: pid, FDCount: len(fds), FDs: fds})
	}

	return response.Success(response.TaskTypeState, subtypeFileDescriptors, fdData{
		TotalProcesses: len(processes),
		Processes:      processes,
	})
}

func classifyTarget(target string) string {
	info, err := os.Stat(target)
	if err != nil {
		// Sockets, pipes and anon inodes resolve to pseudo-paths.
		return "OTHER"
	}
	switch {
	case info.Mode().IsRegular():
		return "REG"
	case info.IsDir():
		return "DIR"
	default:
		return "OTHER"
	}
}

// DirectoryInfo is a watched directory and its entries. Listing failures are
// reported inline as a single-element contents list.
type DirectoryInfo struct {
	Path     string   `json:"path"`
	Contents []string `json:"contents"`
}

type directoryData struct {
	Directories []DirectoryInfo `json:"directories"`
}

// KnownDirectories lists the contents of each watched directory.
func (c *Collector) KnownDirectories(ctx context.Context) *response.Envelope {
	directories := c.Directories

	if c.DirectoryListFile != "" {
		info, err := os.Stat(c.DirectoryListFile)
		if err != nil || info.IsDir() {
			return response.Failure(response.TaskTypeState, subtypeKnownDirectories, response.CodeInvalidArguments,
				fmt.Sprintf("directory list file %q is not a readable file", c.DirectoryListFile))
		}

		raw, err := os.ReadFile(c.DirectoryListFile)
		if err != nil {
			return response.Failure(response.TaskTypeState, subtypeKnownDirectories, response.CodeIOFailure,
				fmt.Sprintf("failed to read directory list file %q: %v", c.DirectoryListFile, err))
		}

		directories = nil
		for _, line := range strings.Split(string(raw), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				directories = append(directories, line)
			}
		}
	} else if len(directories) == 0 {
		directories = DefaultDirectories
	}

	infos := make([]DirectoryInfo, 0, len(directories))
	for _, dir := range directories {
		stat, err := os.Stat(dir)
		if err != nil || !stat.IsDir() {
			infos = append(infos, DirectoryInfo{Path: dir, Contents: []string{"Directory does not exist or is not a directory."}})
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			infos = append(infos, DirectoryInfo{Path: dir, Contents: []string{fmt.Sprintf("Error reading directory: %v", err)}})
			continue
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		infos = append(infos, DirectoryInfo{Path: dir, Contents: names})
	}

	return response.Success(response.TaskTypeState, subtypeKnownDirectories, directoryData{Directories: infos})
}

// FileSystem is one kernel-supported filesystem type, with its fstab mount
// point and options when an fstab entry of the same type exists.
type FileSystem struct {
	Type       string  `json:"type"`
	MountPoint *string `json:"mount_point"`
	Options    *string `json:"options"`
}

type fileSystemData struct {
	TotalFileSystems int          `json:"total_filesystems"`
	FileSystems      []FileSystem `json:"filesystems"`
}

type fstabEntry struct {
	mountPoint string
	fsType     string
	options    string
}

// FileSystems reads /proc/filesystems, skipping nodev pseudo-filesystems,
// and maps each type to the first matching /etc/fstab entry. A missing
// fstab is tolerated silently.
func (c *Collector) FileSystems(ctx context.Context) *response.Envelope {
	f, err := os.Open(c.ProcFilesystems)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeFileSystems, response.CodeIOFailure, fmt.Sprintf("failed to open %s: %v", c.ProcFilesystems, err))
	}
	defer f.Close()

	var supported []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "nodev") {
			continue
		}
		supported = append(supported, line)
	}
	if err := scanner.Err(); err != nil {
		return response.Failure(response.TaskTypeState, subtypeFileSystems, response.CodeExecutionFailure, fmt.Sprintf("error reading %s: %v", c.ProcFilesystems, err))
	}

	fstab := c.readFstab()

	filesystems := make([]FileSystem, 0, len(supported))
	for _, fsType := range supported {
		fs := FileSystem{Type: fsType}
		for _, entry := range fstab {
			if entry.fsType == fsType {
				fs.MountPoint = &entry.mountPoint
				fs.Options = &entry.options
				break
			}
		}
		filesystems = append(filesystems, fs)
	}

	return response.Success(response.TaskTypeState, subtypeFileSystems, fileSystemData{
		TotalFileSystems: len(filesystems),
		FileSystems:      filesystems,
	})
}

func (c *Collector) readFstab() []fstabEntry {
	raw, err := os.ReadFile(c.FstabPath)
	if err != nil {
		return nil
	}

	var entries []fstabEntry
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		entries = append(entries, fstabEntry{
			mountPoint: fields[1],
			fsType:     fields[2],
			options:    fields[3],
		})
	}
	return entries
}
