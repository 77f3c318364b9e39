// replicate/rclone.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package replicate

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"regexp"
	"strings"

	u "github.com/beakfs/beak/util"
)

var log *u.Logger

// SetLogger installs the logger used by this package, matching the
// storage package's SetLogger convention in the teacher.
func SetLogger(l *u.Logger) {
	log = l
}

// ExecSystem implements System by running rclone (or any compatible tool)
// as a subprocess.
type ExecSystem struct{}

func (ExecSystem) Invoke(program string, args []string, lineCallback func(string)) (string, RC) {
	cmd := exec.Command(program, args...)
	var stdout bytes.Buffer
	if lineCallback == nil {
		cmd.Stdout = &stdout
	} else {
		pr, pw := io.Pipe()
		cmd.Stdout = pw
		done := make(chan struct{})
		go func() {
			defer close(done)
			scanner := bufio.NewScanner(pr)
			for scanner.Scan() {
				stdout.WriteString(scanner.Text())
				stdout.WriteByte('\n')
				lineCallback(scanner.Text())
			}
		}()
		defer func() {
			pw.Close()
			<-done
		}()
	}
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return stdout.String(), RC{OK: false, Err: err, ExitCode: exitCode}
	}
	return stdout.String(), Ok()
}

// Fetch writes the desired relative paths to a temp include-from file,
// invokes the copy tool, then unlinks the temp file (spec.md §4.H).
func (d *Driver) Fetch(paths []string, dst string) RC {
	tmp, err := ioutil.TempFile("", "beak-fetch-*.txt")
	if err != nil {
		return Err(err)
	}
	defer os.Remove(tmp.Name())

	for _, p := range paths {
		tmp.WriteString(p + "\n")
	}
	if err := tmp.Close(); err != nil {
		return Err(err)
	}

	_, rc := d.Sys.Invoke("rclone",
		[]string{"copy", "--include-from", tmp.Name(), d.Storage.Location, dst}, nil)
	return rc
}

// SendProgress reports the number of bytes confirmed copied so far for a
// Send call, keyed by the per-file sizes the caller supplied.
type SendProgress struct {
	BytesCopied int64
	Copied      []string
}

var copiedLineRe = regexp.MustCompile(`INFO\s*:\s*(.+?):\s*Copied \(new\)`)

// Send writes the desired relative paths to a temp include-from file,
// invokes the copy tool with -v, and parses its verbose output to advance
// a progress counter keyed by source file sizes (spec.md §4.H).
func (d *Driver) Send(paths []string, sizeOf map[string]int64, src string) (SendProgress, RC) {
	tmp, err := ioutil.TempFile("", "beak-send-*.txt")
	if err != nil {
		return SendProgress{}, Err(err)
	}
	defer os.Remove(tmp.Name())

	for _, p := range paths {
		tmp.WriteString(p + "\n")
	}
	if err := tmp.Close(); err != nil {
		return SendProgress{}, Err(err)
	}

	var progress SendProgress
	lineCB := func(line string) {
		if path := parseCopiedLine(line); path != "" {
			progress.Copied = append(progress.Copied, path)
			if sz, ok := sizeOf[path]; ok {
				progress.BytesCopied += sz
			}
		}
	}

	_, rc := d.Sys.Invoke("rclone",
		[]string{"copy", "-v", "--include-from", tmp.Name(), src, d.Storage.Location}, lineCB)
	return progress, rc
}

// parseCopiedLine extracts the path from a line of the form
// "YYYY/MM/DD HH:MM:SS INFO  : <path>: Copied (new)".
func parseCopiedLine(line string) string {
	m := copiedLineRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
