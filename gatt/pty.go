// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package gatt

import (
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/pkg/errors"
)

// gatttool only flushes its interactive output to a terminal.
type ptyProcess struct {
	*os.File
	cmd *exec.Cmd
}

func spawnPTY(name string, args ...string) (io.ReadWriteCloser, error) {
	cmd := exec.Command(name, args...)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "start %s: %v", name, err)
	}
	return &ptyProcess{File: f, cmd: cmd}, nil
}

func (p *ptyProcess) Close() error {
	err := p.File.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd.Wait()
	return err
}
