package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/keyxmakerx/scribe/internal/client/platform"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// stdinFd is the descriptor handed to readPassword.
var stdinFd = func() int { return int(os.Stdin.Fd()) }

// promptPassword prints prompt to w and reads a password without echo.
func promptPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt+": ")
	pw, err := readPassword(stdinFd())
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// promptLine prints prompt to w and reads one trimmed line from r.
func promptLine(r io.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt+": ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// openFile opens path as an upload. The caller closes the returned file.
func openFile(path string) (*platform.File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	name := filepath.Base(path)
	return &platform.File{
		Name:        name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Body:        f,
	}, f, nil
}
