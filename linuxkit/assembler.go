package linuxkit

import (
	"bytes"
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/nanovms/docker2eif/constants"
	"github.com/nanovms/docker2eif/log"
	"github.com/nanovms/docker2eif/tools"
	"github.com/nanovms/docker2eif/types"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Request is what a boot ramdisk is assembled from
type Request struct {
	// Image is the tag of the local docker image used as root filesystem.
	// linuxkit resolves it as a reference, so image ids are rejected.
	Image      string
	Command    []string
	Env        []string
	KernelPath string
	InitPath   string
	Cmdline    string
	// Linuxkit is the path of the linuxkit executable
	Linuxkit string
	// WorkDir is where the scratch directory of the invocation is created
	WorkDir string
}

// BootBlob is the ramdisk produced by linuxkit
type BootBlob struct {
	Data     []byte
	Manifest []byte
}

// Assembler builds boot ramdisks with linuxkit. It keeps no state between
// calls; every call assembles from scratch.
type Assembler struct {
	invoker tools.Invoker
	fs      afero.Fs
	logger  *log.Logger
}

// Option configures an Assembler
type Option func(*Assembler)

// WithLogger sets the logger of the assembler
func WithLogger(l *log.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// NewAssembler returns an Assembler running linuxkit through inv. fs must
// be the filesystem inv's tools see.
func NewAssembler(inv tools.Invoker, fs afero.Fs, opts ...Option) *Assembler {
	a := &Assembler{
		invoker: inv,
		fs:      fs,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble checks the kernel and init files, runs linuxkit in a scratch
// directory under req.WorkDir and returns the ramdisk it produced.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*BootBlob, error) {
	if err := types.CheckReadableFile(a.fs, req.KernelPath, "kernel"); err != nil {
		return nil, err
	}
	if err := types.CheckReadableFile(a.fs, req.InitPath, "init"); err != nil {
		return nil, err
	}
	if req.Image == "" {
		return nil, types.NewConfigError("", "no image to assemble", nil)
	}
	if _, err := digest.Parse(req.Image); err == nil {
		return nil, types.NewConfigError(req.Image, "image must be referenced by tag, not by id", nil)
	}

	tool := req.Linuxkit
	if tool == "" {
		tool = constants.DefaultLinuxkit
	}
	workDir := req.WorkDir
	if workDir == "" {
		workDir = constants.DefaultWorkDir
	}

	initPath, err := filepath.Abs(req.InitPath)
	if err != nil {
		return nil, types.NewConfigError(req.InitPath, "cannot resolve init path", err)
	}

	scratch, err := afero.TempDir(a.fs, workDir, constants.ToolName+"-")
	if err != nil {
		return nil, types.NewAssemblyError(workDir, "cannot create scratch directory", err)
	}
	defer func() {
		if err := a.fs.RemoveAll(scratch); err != nil {
			a.logger.Warn("cannot remove %s: %v", scratch, err)
		}
	}()

	manifest, err := NewManifest(req.Image, initPath, req.Cmdline, req.Command, req.Env).Marshal()
	if err != nil {
		return nil, types.NewAssemblyError(req.Image, "cannot describe ramdisk", err)
	}
	manifestPath := filepath.Join(scratch, "boot.yml")
	if err := afero.WriteFile(a.fs, manifestPath, manifest, 0644); err != nil {
		return nil, types.NewAssemblyError(manifestPath, "cannot write linuxkit manifest", err)
	}

	prefix := filepath.Join(scratch, "boot")
	args := []string{"build", "-docker", "-format", "kernel+initrd", "-name", prefix, manifestPath}
	a.logger.Debug("%s %s", tool, strings.Join(args, " "))

	out, err := a.invoker.Invoke(ctx, tool, args...)
	if err != nil {
		return nil, types.NewAssemblyError(tool, "linuxkit build failed", err)
	}
	if len(out) > 0 {
		a.logger.Debug("%s", out)
	}

	initrdPath := prefix + "-initrd.img"
	data, err := afero.ReadFile(a.fs, initrdPath)
	if err != nil {
		return nil, types.NewAssemblyError(initrdPath, "linuxkit produced no initrd", err)
	}
	if err := validateInitrd(data); err != nil {
		return nil, types.NewAssemblyError(initrdPath, "malformed initrd", err)
	}

	return &BootBlob{Data: data, Manifest: manifest}, nil
}

// validateInitrd checks that b is a complete gzipped cpio archive holding
// the init binary.
func validateInitrd(b []byte) error {
	gz, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "not gzip compressed")
	}
	defer gz.Close()

	r := cpio.NewReader(gz)
	entries := 0
	hasInit := false
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "cpio entry %d", entries)
		}
		entries++
		if path.Clean("/"+hdr.Name) == "/"+InitFile && hdr.Mode&cpio.ModeType == cpio.TypeReg {
			hasInit = true
		}
	}

	if entries == 0 {
		return errors.New("empty archive")
	}
	if !hasInit {
		return errors.Errorf("no %s entry", InitFile)
	}

	if _, err := io.Copy(io.Discard, gz); err != nil {
		return errors.Wrap(err, "trailing data")
	}
	return nil
}
