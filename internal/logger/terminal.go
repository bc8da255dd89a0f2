package logger

import "github.com/mattn/go-isatty"

// isTerminal reports whether fd is attached to a terminal, used by Init to
// decide whether ColorTextHandler should emit ANSI color codes. The
// raw-syscall isatty this replaced used a //go:build !windows file
// (TIOCGETA, the macOS ioctl) alongside a //go:build linux file (TCGETS) —
// both match on linux and redeclare the same function, which never builds.
// go-isatty folds the platform cases into one portable call.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
