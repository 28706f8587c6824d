// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thermal-watchdog/lib/config"
	"github.com/bureau-foundation/thermal-watchdog/lib/ipmi"
)

//go:embed thermal_watchdog.service.tmpl
var unitTemplateText string

//go:embed thermal_watchdog.toml
var defaultConfigText string

var unitTemplate = template.Must(template.New("unit").Parse(unitTemplateText))

// installer copies the running binary into place and writes the
// systemd unit and a starter configuration. Existing unit and config
// files are left alone; the binary is always replaced.
type installer struct {
	ipmitoolPath string
	binaryPath   string
	unitPath     string
	configPath   string
	live         bool

	executable func() (string, error)
	output     io.Writer
}

func defaultInstaller(output io.Writer) *installer {
	return &installer{
		ipmitoolPath: ipmi.DefaultPath,
		binaryPath:   "/usr/sbin/thermal_watchdog",
		unitPath:     "/etc/systemd/system/thermal_watchdog.service",
		configPath:   config.DefaultPath,
		executable:   os.Executable,
		output:       output,
	}
}

func runInstall(args []string, stdout, stderr io.Writer) error {
	install := defaultInstaller(stdout)

	flagSet := pflag.NewFlagSet(binaryName+" install", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVarP(&install.live, "live", "l", false, "start the service in live mode instead of shadow mode")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return install.run()
}

func (i *installer) run() error {
	if _, err := os.Stat(i.ipmitoolPath); err != nil {
		return fmt.Errorf("unable to find %s, install it first (e.g. \"apt install ipmitool\"): %w", i.ipmitoolPath, err)
	}

	source, err := i.executable()
	if err != nil {
		return fmt.Errorf("locating the running binary: %w", err)
	}
	if err := copyExecutable(source, i.binaryPath); err != nil {
		return fmt.Errorf("installing %s (are you running as root?): %w", i.binaryPath, err)
	}
	fmt.Fprintf(i.output, "installed %s\n", i.binaryPath)

	var unit bytes.Buffer
	err = unitTemplate.Execute(&unit, struct {
		Binary, Config, Ipmitool string
		Live                     bool
	}{i.binaryPath, i.configPath, i.ipmitoolPath, i.live})
	if err != nil {
		return fmt.Errorf("rendering systemd unit: %w", err)
	}
	if err := i.writeIfAbsent(i.unitPath, unit.Bytes()); err != nil {
		return err
	}
	if err := i.writeIfAbsent(i.configPath, []byte(defaultConfigText)); err != nil {
		return err
	}

	fmt.Fprintf(i.output, "enable with: systemctl daemon-reload && systemctl enable --now %s\n",
		filepath.Base(i.unitPath))
	if !i.live {
		fmt.Fprintln(i.output, "the service starts in shadow mode; add --live to ExecStart once its decisions look right")
	}
	return nil
}

func (i *installer) writeIfAbsent(path string, content []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		fmt.Fprintf(i.output, "skipped %s since it already exists\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating %s (are you running as root?): %w", path, err)
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	fmt.Fprintf(i.output, "wrote %s\n", path)
	return nil
}

// copyExecutable replaces destination with a copy of source through a
// temporary file and rename, so a running copy is never truncated.
func copyExecutable(source, destination string) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	temporaryPath := destination + ".tmp"
	output, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(output, input); err != nil {
		output.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := output.Close(); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	if err := os.Rename(temporaryPath, destination); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	return nil
}
