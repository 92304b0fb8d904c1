package backend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/coldharbor/mockadbd/internal/adb"
)

// builtin is one shell command implementation. It receives the already
// tokenized argument list (argv[0] is the command name) and the device
// it's running against, and returns the text to append to stdout/stderr
// plus an exit code.
type builtin func(d *Device, cwd string, args []string) (newCwd, stdout, stderr string, exit int)

var builtins = map[string]builtin{
	"pwd":     cmdPwd,
	"cd":      cmdCd,
	"ls":      cmdLs,
	"cat":     cmdCat,
	"echo":    cmdEcho,
	"mkdir":   cmdMkdir,
	"rm":      cmdRm,
	"cp":      cmdCp,
	"mv":      cmdMv,
	"chmod":   cmdChmod,
	"chown":   cmdChown,
	"ps":      cmdPs,
	"top":     cmdPs,
	"getprop": cmdGetprop,
	"setprop": cmdSetprop,
	"pm":      cmdPm,
	"logcat":  cmdLogcatOneShot,
	"am":      cmdAm,
	"history": cmdHistory,
	"whoami":  cmdWhoami,
	"id":      cmdID,
	"true":    func(d *Device, cwd string, args []string) (string, string, string, int) { return cwd, "", "", 0 },
	"false":   func(d *Device, cwd string, args []string) (string, string, string, int) { return cwd, "", "", 1 },
}

// ShellExecute runs one ";"-separated compound command line against the
// device, concatenating stdout/stderr across the compound list; the exit
// code is the last command's, per the shell stream's contract.
func (d *Device) ShellExecute(cwd, line string) (adb.ShellResult, error) {
	d.mu.Lock()
	d.history = append(d.history, line)
	d.mu.Unlock()

	if cwd == "" {
		cwd = "/"
	}

	var stdout, stderr strings.Builder
	exit := 0
	for _, part := range strings.Split(line, ";") {
		args := tokenize(strings.TrimSpace(part))
		if len(args) == 0 {
			continue
		}
		fn, ok := builtins[args[0]]
		if !ok {
			stderr.WriteString(fmt.Sprintf("/system/bin/sh: %s: not found\n", args[0]))
			exit = 127
			continue
		}
		newCwd, out, errOut, code := fn(d, cwd, args)
		cwd = newCwd
		stdout.WriteString(out)
		stderr.WriteString(errOut)
		exit = code
	}

	return adb.ShellResult{NewCwd: cwd, Stdout: []byte(stdout.String()), Stderr: []byte(stderr.String()), ExitCode: exit}, nil
}

// tokenize is a minimal whitespace/quote splitter — enough for the
// built-in set above, which never needs full shell-quoting semantics.
func tokenize(line string) []string {
	var out []string
	var cur strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == ' ' || c == '\t':
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func flags(args []string) (opts map[byte]bool, rest []string) {
	opts = make(map[byte]bool)
	for _, a := range args {
		if strings.HasPrefix(a, "-") && len(a) > 1 && a != "--" {
			for _, c := range a[1:] {
				opts[byte(c)] = true
			}
			continue
		}
		rest = append(rest, a)
	}
	return
}

func cmdPwd(d *Device, cwd string, args []string) (string, string, string, int) {
	return cwd, cwd + "\n", "", 0
}

func cmdCd(d *Device, cwd string, args []string) (string, string, string, int) {
	target := "/"
	if len(args) > 1 {
		target = args[1]
	}
	norm := normalize(target, cwd)
	st, _ := d.fs.Stat(norm)
	if st.Type != adb.NodeDir {
		return cwd, "", fmt.Sprintf("cd: %s: No such file or directory\n", target), 1
	}
	return norm, "", "", 0
}

func cmdLs(d *Device, cwd string, args []string) (string, string, string, int) {
	opts, rest := flags(args[1:])
	target := cwd
	if len(rest) > 0 {
		target = normalize(rest[0], cwd)
	}
	entries, err := d.fs.List(target)
	if err != nil {
		return cwd, "", fmt.Sprintf("ls: %s: No such file or directory\n", target), 1
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var out strings.Builder
	for _, e := range entries {
		if !opts['a'] && strings.HasPrefix(e.Name, ".") {
			continue
		}
		if opts['l'] {
			kind := "-"
			if e.Type == adb.NodeDir {
				kind = "d"
			} else if e.Type == adb.NodeSymlink {
				kind = "l"
			}
			fmt.Fprintf(&out, "%s%s %8d %s\n", kind, permString(e.Mode), e.Size, e.Name)
		} else {
			out.WriteString(e.Name + "\n")
		}
	}
	return cwd, out.String(), "", 0
}

func permString(mode uint32) string {
	bits := "rwxrwxrwx"
	var b strings.Builder
	for i := 0; i < 9; i++ {
		if mode&(1<<(8-i)) != 0 {
			b.WriteByte(bits[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func cmdCat(d *Device, cwd string, args []string) (string, string, string, int) {
	if len(args) < 2 {
		return cwd, "", "cat: missing operand\n", 1
	}
	var out strings.Builder
	for _, a := range args[1:] {
		data, err := d.fs.ReadFile(normalize(a, cwd))
		if err != nil {
			return cwd, out.String(), fmt.Sprintf("cat: %s: No such file or directory\n", a), 1
		}
		out.Write(data)
	}
	return cwd, out.String(), "", 0
}

func cmdEcho(d *Device, cwd string, args []string) (string, string, string, int) {
	opts, rest := flags(args[1:])
	text := strings.Join(rest, " ")
	if !opts['n'] {
		text += "\n"
	}
	return cwd, text, "", 0
}

func cmdMkdir(d *Device, cwd string, args []string) (string, string, string, int) {
	opts, rest := flags(args[1:])
	_ = opts
	for _, a := range rest {
		d.fs.Seed(normalize(a, cwd), adb.NodeDir, nil, "", 0o755)
	}
	return cwd, "", "", 0
}

func cmdRm(d *Device, cwd string, args []string) (string, string, string, int) {
	opts, rest := flags(args[1:])
	recursive := opts['r']
	exit := 0
	var stderr strings.Builder
	for _, a := range rest {
		if err := d.fs.Remove(normalize(a, cwd), recursive); err != nil && !opts['f'] {
			fmt.Fprintf(&stderr, "rm: %s: No such file or directory\n", a)
			exit = 1
		}
	}
	return cwd, "", stderr.String(), exit
}

func cmdCp(d *Device, cwd string, args []string) (string, string, string, int) {
	_, rest := flags(args[1:])
	if len(rest) < 2 {
		return cwd, "", "cp: missing destination\n", 1
	}
	data, err := d.fs.ReadFile(normalize(rest[0], cwd))
	if err != nil {
		return cwd, "", fmt.Sprintf("cp: %s: No such file or directory\n", rest[0]), 1
	}
	d.fs.WriteFile(normalize(rest[1], cwd), data, 0o644)
	return cwd, "", "", 0
}

func cmdMv(d *Device, cwd string, args []string) (string, string, string, int) {
	if len(args) < 3 {
		return cwd, "", "mv: missing destination\n", 1
	}
	data, err := d.fs.ReadFile(normalize(args[1], cwd))
	if err != nil {
		return cwd, "", fmt.Sprintf("mv: %s: No such file or directory\n", args[1]), 1
	}
	d.fs.WriteFile(normalize(args[2], cwd), data, 0o644)
	d.fs.Remove(normalize(args[1], cwd), false)
	return cwd, "", "", 0
}

func cmdChmod(d *Device, cwd string, args []string) (string, string, string, int) {
	if len(args) < 3 {
		return cwd, "", "chmod: missing operand\n", 1
	}
	mode, err := strconv.ParseUint(args[1], 8, 32)
	if err != nil {
		return cwd, "", "chmod: invalid mode\n", 1
	}
	st, statErr := d.fs.Stat(normalize(args[2], cwd))
	if statErr != nil || st.Type == adb.NodeNotFound {
		return cwd, "", fmt.Sprintf("chmod: %s: No such file or directory\n", args[2]), 1
	}
	data, _ := d.fs.ReadFile(normalize(args[2], cwd))
	d.fs.WriteFile(normalize(args[2], cwd), data, uint32(mode))
	return cwd, "", "", 0
}

func cmdChown(d *Device, cwd string, args []string) (string, string, string, int) {
	return cwd, "", "", 0
}

func cmdPs(d *Device, cwd string, args []string) (string, string, string, int) {
	procs := d.Processes()
	var out strings.Builder
	out.WriteString("USER       PID  NAME\n")
	for _, p := range procs {
		fmt.Fprintf(&out, "%-10s %5d  %s\n", p.User, p.PID, p.Name)
	}
	return cwd, out.String(), "", 0
}

func cmdGetprop(d *Device, cwd string, args []string) (string, string, string, int) {
	if len(args) < 2 {
		var out strings.Builder
		d.mu.RLock()
		for k, v := range d.properties {
			fmt.Fprintf(&out, "[%s]: [%s]\n", k, v)
		}
		d.mu.RUnlock()
		return cwd, out.String(), "", 0
	}
	v, ok := d.GetProp(args[1])
	if !ok {
		return cwd, "\n", "", 0
	}
	return cwd, v + "\n", "", 0
}

func cmdSetprop(d *Device, cwd string, args []string) (string, string, string, int) {
	if len(args) < 3 {
		return cwd, "", "setprop: missing operand\n", 1
	}
	d.SetProp(args[1], args[2])
	return cwd, "", "", 0
}

func cmdPm(d *Device, cwd string, args []string) (string, string, string, int) {
	if len(args) < 2 {
		return cwd, "", "pm: missing subcommand\n", 1
	}
	switch args[1] {
	case "list":
		var out strings.Builder
		for _, p := range d.Packages() {
			fmt.Fprintf(&out, "package:%s\n", p)
		}
		return cwd, out.String(), "", 0
	case "path":
		if len(args) < 3 {
			return cwd, "", "pm: missing package\n", 1
		}
		return cwd, fmt.Sprintf("package:/data/app/%s/base.apk\n", args[2]), "", 0
	case "install":
		d.mu.Lock()
		d.packages = append(d.packages, "installed.apk")
		d.mu.Unlock()
		return cwd, "Success\n", "", 0
	case "uninstall":
		return cwd, "Success\n", "", 0
	default:
		return cwd, "", fmt.Sprintf("pm: unknown subcommand %s\n", args[1]), 1
	}
}

func cmdLogcatOneShot(d *Device, cwd string, args []string) (string, string, string, int) {
	lines := d.LogNext(len(d.logs))
	return cwd, strings.Join(lines, "\n") + "\n", "", 0
}

func cmdAm(d *Device, cwd string, args []string) (string, string, string, int) {
	if len(args) < 2 {
		return cwd, "", "am: missing subcommand\n", 1
	}
	switch args[1] {
	case "start":
		return cwd, "Starting: Intent\n", "", 0
	case "broadcast":
		return cwd, "Broadcast completed: result=0\n", "", 0
	default:
		return cwd, "", fmt.Sprintf("am: unknown subcommand %s\n", args[1]), 1
	}
}

func cmdHistory(d *Device, cwd string, args []string) (string, string, string, int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out strings.Builder
	for i, h := range d.history {
		fmt.Fprintf(&out, "%5d  %s\n", i+1, h)
	}
	return cwd, out.String(), "", 0
}

func cmdWhoami(d *Device, cwd string, args []string) (string, string, string, int) {
	return cwd, "shell\n", "", 0
}

func cmdID(d *Device, cwd string, args []string) (string, string, string, int) {
	return cwd, "uid=2000(shell) gid=2000(shell)\n", "", 0
}
