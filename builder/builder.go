package builder

import (
	"context"
	"io"
	"os"

	"github.com/nanovms/docker2eif/constants"
	"github.com/nanovms/docker2eif/docker"
	"github.com/nanovms/docker2eif/eif"
	"github.com/nanovms/docker2eif/linuxkit"
	"github.com/nanovms/docker2eif/log"
	"github.com/nanovms/docker2eif/types"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

//go:generate mockgen -source=builder.go -destination=mock_builder/mock_builder.go -package=mock_builder

// Resolver makes the source image of a build available locally
type Resolver interface {
	Resolve(ctx context.Context, cfg *types.BuildConfig) (*docker.ResolvedImage, error)
}

// Assembler produces the boot ramdisk of a build
type Assembler interface {
	Assemble(ctx context.Context, req linuxkit.Request) (*linuxkit.BootBlob, error)
}

// Result of a successful build
type Result struct {
	Output       string
	Size         int64
	Measurements *eif.Measurements
	Metadata     *eif.Metadata
	Image        *docker.ResolvedImage
}

// Builder runs one build. It is not reusable: Run may be called once.
type Builder struct {
	cfg       *types.BuildConfig
	resolver  Resolver
	assembler Assembler

	fs        afero.Fs
	logger    *log.Logger
	algorithm digest.Algorithm
	onStage   func(from, to Stage)
	progress  func(size int64) io.Writer

	stage   Stage
	history []Stage
}

// Option configures a Builder
type Option func(*Builder)

// WithFs sets the filesystem inputs are read from and the artifact is
// written to
func WithFs(fs afero.Fs) Option {
	return func(b *Builder) {
		b.fs = fs
	}
}

// WithLogger sets the logger of the build
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithAlgorithm selects the measurement digest algorithm
func WithAlgorithm(alg digest.Algorithm) Option {
	return func(b *Builder) {
		b.algorithm = alg
	}
}

// WithStageHook registers f to be called on every stage transition
func WithStageHook(f func(from, to Stage)) Option {
	return func(b *Builder) {
		b.onStage = f
	}
}

// WithProgress registers a factory for a writer that receives section bytes
// as they are serialized. It is given the number of bytes it will receive.
func WithProgress(f func(size int64) io.Writer) Option {
	return func(b *Builder) {
		b.progress = f
	}
}

// New returns a Builder for cfg
func New(cfg *types.BuildConfig, r Resolver, a Assembler, opts ...Option) *Builder {
	b := &Builder{
		cfg:       cfg,
		resolver:  r,
		assembler: a,
		fs:        afero.NewOsFs(),
		logger:    log.Default(),
		algorithm: eif.DefaultAlgorithm,
		stage:     StageInit,
		history:   []Stage{StageInit},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stage returns the current stage
func (b *Builder) Stage() Stage {
	return b.stage
}

// History returns every stage the build went through, in order
func (b *Builder) History() []Stage {
	return append([]Stage{}, b.history...)
}

func (b *Builder) enter(s Stage) {
	from := b.stage
	b.stage = s
	b.history = append(b.history, s)
	b.logger.Debug("build %s -> %s", from, s)
	if b.onStage != nil {
		b.onStage(from, s)
	}
}

func (b *Builder) advance() {
	b.enter(b.stage.next())
}

// fail moves the build to StageFailed and returns err unchanged
func (b *Builder) fail(err error) error {
	b.logger.Debug("build failed while %s: %v", b.stage, err)
	b.enter(StageFailed)
	return err
}

// Run resolves the image, assembles the ramdisk and writes the artifact.
// The output is opened and truncated when resolution starts and removed
// again if the build fails, so a failed build never leaves an artifact
// behind, not even one from an earlier run. The first error ends the
// build; nothing is retried.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	if b.stage != StageInit {
		return nil, errors.Errorf("build already ran and is %s", b.stage)
	}
	if b.cfg == nil {
		return nil, b.fail(types.NewConfigError("", "missing configuration", nil))
	}
	if !b.algorithm.Available() {
		return nil, b.fail(types.NewConfigError(b.algorithm.String(), "unsupported digest algorithm", nil))
	}

	b.advance()
	out, err := b.fs.OpenFile(b.cfg.Output(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, b.fail(types.NewWriteError(b.cfg.Output(), "cannot open output", err))
	}

	res, err := b.run(ctx, out)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = types.NewWriteError(b.cfg.Output(), "cannot close output", cerr)
	}
	if err != nil {
		b.discard()
		return nil, b.fail(err)
	}

	b.advance()
	return res, nil
}

func (b *Builder) run(ctx context.Context, out eif.Output) (*Result, error) {
	b.logger.Info("resolving %s", b.cfg.Image())
	img, err := b.resolver.Resolve(ctx, b.cfg)
	if err != nil {
		return nil, err
	}

	b.advance()
	b.logger.Info("assembling ramdisk from %s (%s)", img.Tag, img.ID)
	blob, err := b.assembler.Assemble(ctx, linuxkit.Request{
		Image:      img.Tag,
		Command:    img.Command(),
		Env:        img.Env,
		KernelPath: b.cfg.KernelPath(),
		InitPath:   b.cfg.InitPath(),
		Cmdline:    b.cfg.Cmdline(),
		Linuxkit:   b.cfg.LinuxkitPath(),
		WorkDir:    b.cfg.WorkDir(),
	})
	if err != nil {
		return nil, err
	}

	b.advance()
	b.logger.Info("writing %s", b.cfg.Output())
	return b.serialize(out, img, blob)
}

// discard removes the output of a failed build
func (b *Builder) discard() {
	if err := b.fs.Remove(b.cfg.Output()); err != nil && !os.IsNotExist(err) {
		b.logger.Warn("cannot remove %s: %v", b.cfg.Output(), err)
	}
}

func (b *Builder) serialize(out eif.Output, img *docker.ResolvedImage, blob *linuxkit.BootBlob) (*Result, error) {
	kernel, err := afero.ReadFile(b.fs, b.cfg.KernelPath())
	if err != nil {
		return nil, types.NewConfigError(b.cfg.KernelPath(), "cannot read kernel", err)
	}
	initBin, err := afero.ReadFile(b.fs, b.cfg.InitPath())
	if err != nil {
		return nil, types.NewConfigError(b.cfg.InitPath(), "cannot read init", err)
	}

	meta := b.metadata(img, kernel, initBin)
	metaBytes, err := meta.Marshal()
	if err != nil {
		return nil, types.NewWriteError(b.cfg.Output(), "cannot encode metadata", err)
	}

	sections := eif.SectionSet{
		Kernel:   kernel,
		Ramdisk:  blob.Data,
		Cmdline:  []byte(b.cfg.Cmdline()),
		Metadata: metaBytes,
	}

	opts := []eif.WriterOption{
		eif.WithName(b.cfg.Output()),
		eif.WithAlgorithm(b.algorithm),
		eif.WithResources(b.cfg.MemoryMiB(), b.cfg.CPUs()),
		eif.WithArch(img.Architecture),
	}
	size := sections.Size(b.algorithm)
	if b.progress != nil {
		payload := int64(len(kernel) + len(blob.Data) + len(sections.Cmdline) + len(metaBytes))
		if p := b.progress(payload); p != nil {
			opts = append(opts, eif.WithProgress(p))
		}
	}

	m, err := eif.NewWriter(out, opts...).Write(sections)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:       b.cfg.Output(),
		Size:         size,
		Measurements: m,
		Metadata:     meta,
		Image:        img,
	}, nil
}

func (b *Builder) metadata(img *docker.ResolvedImage, kernel, initBin []byte) *eif.Metadata {
	return &eif.Metadata{
		ImageName:        img.Name,
		ImageVersion:     img.Version,
		ImageID:          img.ID.String(),
		RepoDigests:      img.RepoDigests,
		Architecture:     img.Architecture,
		OS:               img.OS,
		Cmdline:          b.cfg.Cmdline(),
		InitDigest:       b.algorithm.FromBytes(initBin).String(),
		KernelDigest:     b.algorithm.FromBytes(kernel).String(),
		BuildTool:        constants.ToolName,
		BuildToolVersion: constants.Version,
		DockerInfo: eif.DockerInfo{
			Entrypoint: img.Entrypoint,
			Cmd:        img.Cmd,
			Env:        img.Env,
			WorkingDir: img.WorkingDir,
		},
	}
}
