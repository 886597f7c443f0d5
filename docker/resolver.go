package docker

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"
	"github.com/nanovms/docker2eif/log"
	"github.com/nanovms/docker2eif/types"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ResolvedImage is a container image available in local storage
type ResolvedImage struct {
	// Reference is the normalized tag, or the build context in build mode
	Reference    string
	// Tag names the image in local docker storage. Boot manifests refer to
	// the image by this tag, never by its id.
	Tag          string
	Name         string
	Version      string
	ID           digest.Digest
	RepoDigests  []string
	Entrypoint   []string
	Cmd          []string
	Env          []string
	WorkingDir   string
	Architecture string
	OS           string
}

// Command returns the process the image runs: its entrypoint followed by
// its cmd.
func (i *ResolvedImage) Command() []string {
	cmd := make([]string, 0, len(i.Entrypoint)+len(i.Cmd))
	cmd = append(cmd, i.Entrypoint...)
	return append(cmd, i.Cmd...)
}

// Resolver materializes the source image of a build in local docker
// storage, by pull or by build.
type Resolver struct {
	client Client
	fs     afero.Fs
	out    io.Writer
	logger *log.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithOutput sets where pull and build progress is displayed
func WithOutput(w io.Writer) ResolverOption {
	return func(r *Resolver) {
		r.out = w
	}
}

// WithFs sets the filesystem build contexts are checked on
func WithFs(fs afero.Fs) ResolverOption {
	return func(r *Resolver) {
		r.fs = fs
	}
}

// WithLogger sets the logger of the resolver
func WithLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver returns a Resolver using client
func NewResolver(client Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client: client,
		fs:     afero.NewOsFs(),
		out:    os.Stdout,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve pulls or builds the image named by cfg and returns its local
// description. Every failure is a *types.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, cfg *types.BuildConfig) (*ResolvedImage, error) {
	ref := cfg.Image()
	if ref.Mode() == types.BuildMode {
		return r.build(ctx, ref)
	}
	return r.pull(ctx, ref)
}

func (r *Resolver) pull(ctx context.Context, ref types.ImageReference) (*ResolvedImage, error) {
	named, err := ParseImageTag(ref.Tag)
	if err != nil {
		return nil, types.NewResolutionError(ref.Tag, "invalid image tag", err)
	}
	tag := reference.FamiliarString(named)

	pull := ref.AlwaysPull
	if !pull {
		insp, err := r.client.ImageInspect(ctx, tag)
		switch {
		case err == nil:
			r.logger.Info("using local image %s", tag)
			return r.resolved(tag, tag, named, insp)
		case errdefs.IsNotFound(err):
			r.logger.Debug("image %s not found locally", tag)
			pull = true
		default:
			return nil, types.NewResolutionError(tag, "cannot inspect image", err)
		}
	}

	r.logger.Info("pulling image %s", tag)
	stream, err := r.client.ImagePull(ctx, tag, image.PullOptions{})
	if err != nil {
		return nil, types.NewResolutionError(tag, "cannot pull image", err)
	}
	defer stream.Close()

	if err := r.display(stream, nil); err != nil {
		return nil, types.NewResolutionError(tag, "cannot pull image", err)
	}

	insp, err := r.client.ImageInspect(ctx, tag)
	if err != nil {
		return nil, types.NewResolutionError(tag, "pulled image is not available locally", err)
	}
	return r.resolved(tag, tag, named, insp)
}

func (r *Resolver) build(ctx context.Context, ref types.ImageReference) (*ResolvedImage, error) {
	dir := ref.BuildContext
	if info, err := r.fs.Stat(dir); err != nil {
		return nil, types.NewResolutionError(dir, "build context does not exist", err)
	} else if !info.IsDir() {
		return nil, types.NewResolutionError(dir, "build context is not a directory", nil)
	}

	dockerfile := filepath.Join(dir, ref.Dockerfile)
	if info, err := r.fs.Stat(dockerfile); err != nil {
		return nil, types.NewResolutionError(dockerfile, "build context has no build descriptor", err)
	} else if info.IsDir() {
		return nil, types.NewResolutionError(dockerfile, "build descriptor is a directory", nil)
	}

	tar, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return nil, types.NewResolutionError(dir, "cannot archive build context", err)
	}
	defer tar.Close()

	buildTag := BuildTag(dir)
	r.logger.Info("building image %s from %s", buildTag, dockerfile)
	resp, err := r.client.ImageBuild(ctx, tar, build.ImageBuildOptions{
		Tags:        []string{buildTag},
		Dockerfile:  ref.Dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, types.NewResolutionError(dir, "cannot build image", err)
	}
	defer resp.Body.Close()

	var id string
	err = r.display(resp.Body, func(msg jsonmessage.JSONMessage) {
		var result build.Result
		if msg.Aux != nil && json.Unmarshal(*msg.Aux, &result) == nil && result.ID != "" {
			id = result.ID
		}
	})
	if err != nil {
		return nil, types.NewResolutionError(dir, "image build failed", err)
	}
	if id == "" {
		return nil, types.NewResolutionError(dir, "image build did not report an image id", nil)
	}

	insp, err := r.client.ImageInspect(ctx, id)
	if err != nil {
		return nil, types.NewResolutionError(id, "built image is not available locally", err)
	}
	return r.resolved(dir, buildTag, nil, insp)
}

func (r *Resolver) display(stream io.Reader, aux func(jsonmessage.JSONMessage)) error {
	fd, isTerm := term.GetFdInfo(r.out)
	return jsonmessage.DisplayJSONMessagesStream(stream, r.out, fd, isTerm, aux)
}

func (r *Resolver) resolved(ref, tag string, named reference.Named, insp image.InspectResponse) (*ResolvedImage, error) {
	id, err := digest.Parse(insp.ID)
	if err != nil {
		return nil, types.NewResolutionError(ref, "image has an invalid id", errors.Wrap(err, insp.ID))
	}

	img := &ResolvedImage{
		Reference:    ref,
		Tag:          tag,
		ID:           id,
		RepoDigests:  append([]string{}, insp.RepoDigests...),
		Architecture: insp.Architecture,
		OS:           insp.Os,
	}

	if named != nil {
		img.Name, img.Version, _ = ImageNameAndVersion(ref)
	} else {
		img.Name = filepath.Base(filepath.Clean(ref))
		img.Version = id.Encoded()[:12]
	}

	if insp.Config != nil {
		img.Entrypoint = append([]string{}, insp.Config.Entrypoint...)
		img.Cmd = append([]string{}, insp.Config.Cmd...)
		img.Env = append([]string{}, insp.Config.Env...)
		img.WorkingDir = insp.Config.WorkingDir
	}

	r.logger.Debug("resolved %s to %s (%s/%s)", ref, id, img.OS, img.Architecture)
	return img, nil
}
