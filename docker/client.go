package docker

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	dockerClient "github.com/docker/docker/client"
)

//go:generate mockgen -source=client.go -destination=mock_docker/mock_client.go -package=mock_docker

// Client is the part of the Docker Engine API the resolver needs.
// *client.Client satisfies it.
type Client interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageInspect(ctx context.Context, imageID string, inspectOpts ...dockerClient.ImageInspectOption) (image.InspectResponse, error)
}

// NewClient connects to the daemon configured by the DOCKER_* environment
func NewClient() (*dockerClient.Client, error) {
	return dockerClient.NewClientWithOpts(dockerClient.FromEnv, dockerClient.WithAPIVersionNegotiation())
}
