package watcher

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemType is a best-effort classification of the filesystem holding
// a watched file. Remote filesystems rarely deliver change notifications, so
// the watcher polls on them.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS:
		return true
	}
	return false
}

// mountsFile lists mounted filesystems on Linux. Elsewhere it is missing and
// every path is FSTypeUnknown.
var mountsFile = "/proc/self/mounts"

// detectFilesystemTypeFunc is swapped out by tests.
var detectFilesystemTypeFunc = detectFromMounts

// DetectFilesystemType classifies the filesystem holding path. A path that
// does not exist yet is classified by its nearest existing parent.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	return detectFilesystemTypeFunc(path)
}

func detectFromMounts(path string) FilesystemType {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FSTypeUnknown
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			break
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			break
		}
		abs = parent
	}

	f, err := os.Open(mountsFile)
	if err != nil {
		return FSTypeUnknown
	}
	defer f.Close()

	best, bestType := "", ""
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mount := fields[1]
		if !underMount(abs, mount) || len(mount) < len(best) {
			continue
		}
		best, bestType = mount, fields[2]
	}
	if best == "" {
		return FSTypeUnknown
	}
	return classify(bestType)
}

func underMount(path, mount string) bool {
	if mount == "/" {
		return true
	}
	return path == mount || strings.HasPrefix(path, mount+string(filepath.Separator))
}

func classify(fstype string) FilesystemType {
	switch {
	case strings.HasPrefix(fstype, "nfs"):
		return FSTypeNFS
	case fstype == "cifs" || fstype == "smb3" || fstype == "smbfs":
		return FSTypeSMB
	case fstype == "fuse.sshfs":
		return FSTypeSSHFS
	case strings.HasPrefix(fstype, "fuse"):
		return FSTypeFUSE
	}
	return FSTypeLocal
}
