package crypt

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// GPG encrypts by piping through an external gpg binary. With
// Recipients set it encrypts to those public keys; otherwise it runs in
// symmetric mode and Passphrase must be set.
type GPG struct {
	// Binary is the gpg executable name or path. Empty means "gpg".
	Binary string

	// Recipients are key IDs or fingerprints for asymmetric mode.
	Recipients []string

	// Passphrase unlocks symmetric mode and secret keys. It is passed
	// over a pipe, never on the command line.
	Passphrase string
}

var _ Encrypter = (*GPG)(nil)

func (g *GPG) binary() string {
	if g.Binary != "" {
		return g.Binary
	}
	return "gpg"
}

func (g *GPG) baseArgs() []string {
	return []string{"--batch", "--no-tty", "--quiet", "--yes"}
}

// Encrypt starts a gpg process writing ciphertext to dst and returns
// the plaintext side of its stdin pipe. Close flushes the pipe and
// waits for the process; a nonzero exit surfaces there, with stderr
// attached.
func (g *GPG) Encrypt(dst io.Writer) (io.WriteCloser, error) {
	args := g.baseArgs()
	if len(g.Recipients) > 0 {
		args = append(args, "--encrypt")
		for _, r := range g.Recipients {
			args = append(args, "--recipient", r)
		}
		args = append(args, "--trust-model", "always")
	} else {
		if g.Passphrase == "" {
			return nil, ErrNoRecipients
		}
		args = append(args, "--symmetric")
	}
	return g.start(args, dst)
}

// Decrypt starts a gpg process reading ciphertext from src and returns
// its stdout. Close drains the stream and waits for the process.
func (g *GPG) Decrypt(src io.Reader) (io.ReadCloser, error) {
	args := append(g.baseArgs(), "--decrypt")

	cmd := exec.Command(g.binary(), args...)
	cmd.Stdin = src
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	cleanup, err := g.attachPassphrase(cmd)
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("crypt: start %s: %w", g.binary(), err)
	}
	cleanup()

	return &gpgReader{stdout: stdout, cmd: cmd, stderr: &stderr, binary: g.binary()}, nil
}

func (g *GPG) start(args []string, dst io.Writer) (io.WriteCloser, error) {
	cmd := exec.Command(g.binary(), args...)
	cmd.Stdout = dst
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	cleanup, err := g.attachPassphrase(cmd)
	if err != nil {
		return nil, err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("crypt: start %s: %w", g.binary(), err)
	}
	// The child holds its own copy of the pipe now.
	cleanup()

	return &gpgWriter{stdin: stdin, cmd: cmd, stderr: &stderr, binary: g.binary()}, nil
}

// attachPassphrase feeds the passphrase to the child over an inherited
// pipe on fd 3 and appends the matching --passphrase-fd arguments. The
// returned cleanup closes the parent's read end after Start.
func (g *GPG) attachPassphrase(cmd *exec.Cmd) (func(), error) {
	if g.Passphrase == "" {
		return func() {}, nil
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	go func() {
		io.WriteString(w, g.Passphrase)
		w.Close()
	}()
	cmd.ExtraFiles = []*os.File{r}
	cmd.Args = append(cmd.Args, "--pinentry-mode", "loopback", "--passphrase-fd", "3")
	return func() { r.Close() }, nil
}

type gpgWriter struct {
	stdin  io.WriteCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	binary string
}

func (w *gpgWriter) Write(p []byte) (int, error) { return w.stdin.Write(p) }

func (w *gpgWriter) Close() error {
	if err := w.stdin.Close(); err != nil {
		w.cmd.Wait()
		return err
	}
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("crypt: %s: %w: %s", w.binary, err, w.stderr.String())
	}
	return nil
}

type gpgReader struct {
	stdout io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	binary string
}

func (r *gpgReader) Read(p []byte) (int, error) { return r.stdout.Read(p) }

func (r *gpgReader) Close() error {
	io.Copy(io.Discard, r.stdout)
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("crypt: %s: %w: %s", r.binary, err, r.stderr.String())
	}
	return nil
}
