package builder_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/nanovms/docker2eif/builder"
	"github.com/nanovms/docker2eif/builder/mock_builder"
	"github.com/nanovms/docker2eif/docker"
	"github.com/nanovms/docker2eif/eif"
	"github.com/nanovms/docker2eif/linuxkit"
	"github.com/nanovms/docker2eif/log"
	"github.com/nanovms/docker2eif/testutils"
	"github.com/nanovms/docker2eif/types"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func resolvedImage() *docker.ResolvedImage {
	return &docker.ResolvedImage{
		Reference:    "hello-enclave:latest",
		Tag:          "hello-enclave:latest",
		Name:         "hello-enclave",
		Version:      "latest",
		ID:           digest.Digest("sha256:4f1ce1bd2a2b8b8e6f1f0d1bb2b9a9c8e2d3f1c0b1a2d3e4f5a6b7c8d9e0f1a2"),
		Entrypoint:   []string{"/bin/true"},
		Architecture: "amd64",
		OS:           "linux",
	}
}

type fixture struct {
	fs        afero.Fs
	in        *testutils.BuildInputs
	cfg       *types.BuildConfig
	resolver  *mock_builder.MockResolver
	assembler *mock_builder.MockAssembler
	initrd    []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	fs := afero.NewMemMapFs()

	in, err := testutils.WriteBuildInputs(fs, "/work")
	require.NoError(t, err)

	cfg, err := types.NewBuildConfig(&types.Config{
		Image:   "hello-enclave",
		Kernel:  in.Kernel,
		Init:    in.Init,
		Cmdline: testutils.Cmdline,
		Output:  in.Output,
		WorkDir: in.Dir,
	}, fs)
	require.NoError(t, err)

	initrd, err := testutils.NewInitrd(map[string][]byte{"init": testutils.Init, "cmd": []byte("/bin/true\n")})
	require.NoError(t, err)

	return &fixture{
		fs:        fs,
		in:        in,
		cfg:       cfg,
		resolver:  mock_builder.NewMockResolver(ctrl),
		assembler: mock_builder.NewMockAssembler(ctrl),
		initrd:    initrd,
	}
}

func (f *fixture) expectSuccess() {
	f.resolver.EXPECT().Resolve(gomock.Any(), f.cfg).Return(resolvedImage(), nil)
	f.assembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).Return(&linuxkit.BootBlob{Data: f.initrd}, nil)
}

func (f *fixture) builder(opts ...builder.Option) *builder.Builder {
	opts = append([]builder.Option{
		builder.WithFs(f.fs),
		builder.WithLogger(log.New(io.Discard)),
	}, opts...)
	return builder.New(f.cfg, f.resolver, f.assembler, opts...)
}

func TestRun(t *testing.T) {
	t.Run("should write a four section artifact", func(t *testing.T) {
		f := newFixture(t)
		f.expectSuccess()

		b := f.builder()
		res, err := b.Run(context.Background())
		require.NoError(t, err)

		data, err := afero.ReadFile(f.fs, f.in.Output)
		require.NoError(t, err)
		assert.Equal(t, res.Size, int64(len(data)))

		img, err := eif.Parse(data)
		require.NoError(t, err)
		require.NoError(t, img.Verify())

		sections := img.Sections()
		require.Len(t, sections, 4)

		kernel, err := img.ReadSection(eif.SectionKernel)
		require.NoError(t, err)
		assert.Equal(t, testutils.Kernel, kernel)
		assert.Equal(t, eif.SectionKernel, sections[0].Type)

		ramdisk, err := img.ReadSection(eif.SectionRamdisk)
		require.NoError(t, err)
		assert.Equal(t, f.initrd, ramdisk)

		cmdline, err := img.ReadSection(eif.SectionCmdline)
		require.NoError(t, err)
		assert.Equal(t, []byte(testutils.Cmdline), cmdline)
		assert.Equal(t, eif.SectionCmdline, sections[2].Type)

		require.Len(t, res.Measurements.Sections, 4)
		zero := make([]byte, eif.DefaultAlgorithm.Size())
		for _, s := range res.Measurements.Sections {
			assert.NoError(t, s.Digest.Validate())
			assert.NotEqual(t, digest.NewDigestFromBytes(eif.DefaultAlgorithm, zero), s.Digest)
		}
		assert.True(t, res.Measurements.Equal(img.Measurements))

		meta, err := img.Metadata()
		require.NoError(t, err)
		assert.Equal(t, "hello-enclave", meta.ImageName)
		assert.Equal(t, eif.DefaultAlgorithm.FromBytes(testutils.Init).String(), meta.InitDigest)
		assert.Equal(t, []string{"/bin/true"}, meta.DockerInfo.Entrypoint)

		assert.Equal(t, builder.StageDone, b.Stage())
		assert.Equal(t, []builder.Stage{
			builder.StageInit,
			builder.StageResolving,
			builder.StageAssembling,
			builder.StageSerializing,
			builder.StageDone,
		}, b.History())
	})

	t.Run("should hand the resolved image to the assembler", func(t *testing.T) {
		f := newFixture(t)
		f.resolver.EXPECT().Resolve(gomock.Any(), f.cfg).Return(resolvedImage(), nil)
		f.assembler.EXPECT().Assemble(gomock.Any(), linuxkit.Request{
			Image:      "hello-enclave:latest",
			Command:    []string{"/bin/true"},
			KernelPath: f.in.Kernel,
			InitPath:   f.in.Init,
			Cmdline:    testutils.Cmdline,
			Linuxkit:   "linuxkit",
			WorkDir:    f.in.Dir,
		}).Return(&linuxkit.BootBlob{Data: f.initrd}, nil)

		_, err := f.builder().Run(context.Background())
		assert.NoError(t, err)
	})

	t.Run("should produce identical artifacts from identical inputs", func(t *testing.T) {
		var outputs [][]byte
		var measurements []*eif.Measurements
		for i := 0; i < 2; i++ {
			f := newFixture(t)
			f.expectSuccess()

			res, err := f.builder().Run(context.Background())
			require.NoError(t, err)

			data, err := afero.ReadFile(f.fs, f.in.Output)
			require.NoError(t, err)
			outputs = append(outputs, data)
			measurements = append(measurements, res.Measurements)
		}

		assert.True(t, bytes.Equal(outputs[0], outputs[1]))
		assert.True(t, measurements[0].Equal(measurements[1]))
	})

	t.Run("should notify stage transitions and stream progress", func(t *testing.T) {
		f := newFixture(t)
		f.expectSuccess()

		var transitions []string
		var progress bytes.Buffer
		var announced int64
		b := f.builder(
			builder.WithStageHook(func(from, to builder.Stage) {
				transitions = append(transitions, from.String()+">"+to.String())
			}),
			builder.WithProgress(func(size int64) io.Writer {
				announced = size
				return &progress
			}),
		)

		res, err := b.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []string{"init>resolving", "resolving>assembling", "assembling>serializing", "serializing>done"}, transitions)
		assert.Equal(t, int64(progress.Len()), announced)
		assert.Equal(t, len(testutils.Kernel)+len(f.initrd)+len(testutils.Cmdline)+len(mustMarshal(t, res.Metadata)), progress.Len())
	})

	t.Run("should measure with the requested algorithm", func(t *testing.T) {
		f := newFixture(t)
		f.expectSuccess()

		res, err := f.builder(builder.WithAlgorithm(digest.SHA256)).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, digest.SHA256, res.Measurements.Algorithm)
		assert.Equal(t, digest.SHA256.FromBytes(testutils.Kernel).String(), res.Metadata.KernelDigest)
	})
}

func mustMarshal(t *testing.T, m *eif.Metadata) []byte {
	t.Helper()
	b, err := m.Marshal()
	require.NoError(t, err)
	return b
}

func TestRunFailures(t *testing.T) {
	t.Run("should stop when the image cannot be resolved", func(t *testing.T) {
		f := newFixture(t)
		rerr := types.NewResolutionError("hello-enclave:latest", "cannot pull image", errors.New("denied"))
		f.resolver.EXPECT().Resolve(gomock.Any(), f.cfg).Return(nil, rerr)

		b := f.builder()
		_, err := b.Run(context.Background())

		assert.Same(t, rerr, err)
		assert.Equal(t, builder.StageFailed, b.Stage())
		assert.Equal(t, []builder.Stage{builder.StageInit, builder.StageResolving, builder.StageFailed}, b.History())
	})

	t.Run("should not leave an output when assembly fails", func(t *testing.T) {
		f := newFixture(t)
		aerr := types.NewAssemblyError("linuxkit", "linuxkit build failed", errors.New("exit status 1"))
		f.resolver.EXPECT().Resolve(gomock.Any(), f.cfg).Return(resolvedImage(), nil)
		f.assembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).Return(nil, aerr)

		b := f.builder()
		_, err := b.Run(context.Background())

		var got *types.AssemblyError
		require.True(t, errors.As(err, &got))
		assert.Same(t, aerr, got)

		exists, err := afero.Exists(f.fs, f.in.Output)
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Equal(t, []builder.Stage{builder.StageInit, builder.StageResolving, builder.StageAssembling, builder.StageFailed}, b.History())
	})

	t.Run("should not leave an earlier artifact behind when a later build fails", func(t *testing.T) {
		f := newFixture(t)
		f.expectSuccess()
		_, err := f.builder().Run(context.Background())
		require.NoError(t, err)

		f.resolver.EXPECT().Resolve(gomock.Any(), f.cfg).
			DoAndReturn(func(context.Context, *types.BuildConfig) (*docker.ResolvedImage, error) {
				info, err := f.fs.Stat(f.in.Output)
				require.NoError(t, err)
				assert.Equal(t, int64(0), info.Size())
				return resolvedImage(), nil
			})
		f.assembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).
			Return(nil, types.NewAssemblyError("linuxkit", "linuxkit build failed", nil))

		_, err = f.builder().Run(context.Background())

		var aerr *types.AssemblyError
		require.True(t, errors.As(err, &aerr))
		exists, err := afero.Exists(f.fs, f.in.Output)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("should report an output that cannot be opened before resolving", func(t *testing.T) {
		f := newFixture(t)

		b := builder.New(f.cfg, f.resolver, f.assembler,
			builder.WithFs(afero.NewReadOnlyFs(f.fs)),
			builder.WithLogger(log.New(io.Discard)),
		)
		_, err := b.Run(context.Background())

		var werr *types.WriteError
		require.True(t, errors.As(err, &werr))
		assert.Equal(t, f.in.Output, werr.Subject)
		assert.Equal(t, []builder.Stage{builder.StageInit, builder.StageResolving, builder.StageFailed}, b.History())
	})

	t.Run("should refuse to run twice", func(t *testing.T) {
		f := newFixture(t)
		f.expectSuccess()

		b := f.builder()
		_, err := b.Run(context.Background())
		require.NoError(t, err)

		_, err = b.Run(context.Background())
		assert.Error(t, err)
		assert.Equal(t, builder.StageDone, b.Stage())
	})

	t.Run("should reject an unknown digest algorithm before resolving", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.builder(builder.WithAlgorithm("md5")).Run(context.Background())

		var cerr *types.ConfigError
		assert.True(t, errors.As(err, &cerr))
	})
}

func TestStage(t *testing.T) {
	assert.Equal(t, "serializing", builder.StageSerializing.String())
	assert.Equal(t, "stage(9)", builder.Stage(9).String())
	assert.True(t, builder.StageFailed.Terminal())
	assert.False(t, builder.StageAssembling.Terminal())
}
