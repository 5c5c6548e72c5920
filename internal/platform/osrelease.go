package platform

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"golang.org/x/sys/unix"
)

// osRelease holds the fields we care about from os-release(5).
type osRelease struct {
	ID     string
	IDLike []string
}

// fallbackPaths are tried in order after the primary path. Older and
// minimal systems ship only one of these.
var fallbackPaths = []string{"/usr/lib/os-release", "/etc/lsb-release"}

// readOSRelease parses the first readable os-release style file.
// A completely missing identification is not an error.
func readOSRelease(primary string, log hclog.Logger) osRelease {
	for _, path := range append([]string{primary}, fallbackPaths...) {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		rel := parseOSRelease(f)
		f.Close()
		if rel.ID != "" {
			return rel
		}
	}
	log.Warn("could not identify Linux distribution from os-release files")
	return osRelease{}
}

// parseOSRelease reads KEY=value lines, tolerating quoting and the
// DISTRIB_ID spelling used by lsb-release files.
func parseOSRelease(f io.Reader) osRelease {
	var rel osRelease
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			rel.ID = strings.ToLower(value)
		case "DISTRIB_ID":
			if rel.ID == "" {
				rel.ID = strings.ToLower(value)
			}
		case "ID_LIKE":
			for _, part := range strings.Fields(strings.ToLower(value)) {
				rel.IDLike = append(rel.IDLike, part)
			}
		}
	}
	return rel
}

// unameMachine returns the kernel's machine string (uname -m).
func unameMachine() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Machine[:])
}
