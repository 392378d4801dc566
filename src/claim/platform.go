package claim

import (
	"runtime"
	"strings"
)

// Platform describes how an operator reads the proof file on one family of
// operating systems.
type Platform struct {
	Prefix    string
	Translate func(path string) string
	Help      string
}

var posixPlatform = Platform{
	Prefix:    "sudo cat",
	Translate: func(path string) string { return path },
	Help:      "We need to verify this server is yours. SSH to this server and run this command. It will give you a UUID. Copy and paste this UUID to this box:",
}

var platforms = map[string]Platform{
	"windows": {
		Prefix:    "more",
		Translate: windowsPath,
		Help:      "We need to verify this Windows server is yours. So, open a Command Prompt on this server to run the command. It will give you a UUID. Copy and paste this UUID to this box:",
	},
}

// PlatformFor returns the strategy for goos; an empty goos means the running
// system. Anything without an entry is treated as POSIX.
func PlatformFor(goos string) Platform {
	if goos == "" {
		goos = runtime.GOOS
	}
	if p, ok := platforms[goos]; ok {
		return p
	}
	return posixPlatform
}

// Command returns the path as the operator sees it and the shell command that
// prints it. The path is quoted only when it contains a space.
func (p Platform) Command(path string) (display, cmd string) {
	display = p.Translate(path)
	quote := ""
	if strings.Contains(display, " ") {
		quote = `"`
	}
	return display, p.Prefix + " " + quote + display + quote
}

// windowsPath turns a slash separated path, including /cygdrive/<d>/ style
// paths, into a native one.
func windowsPath(path string) string {
	const cygdrive = "/cygdrive/"
	if strings.HasPrefix(path, cygdrive) && len(path) > len(cygdrive) {
		rest := path[len(cygdrive):]
		drive := strings.ToUpper(rest[:1])
		rest = strings.TrimPrefix(rest[1:], "/")
		path = drive + ":/" + rest
	}
	return strings.ReplaceAll(path, "/", `\`)
}
