// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package mobynet

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// DefaultDockerHost is the API endpoint of the local Docker daemon.
const DefaultDockerHost = "unix:///var/run/docker.sock"

// ContainerInspector inspects containers by name or ID; it is satisfied by
// Docker's [client.Client].
type ContainerInspector interface {
	ContainerInspect(ctx context.Context, container string) (types.ContainerJSON, error)
}

// NewClient returns a new Docker client for the local Docker daemon, with
// API version negotiation.
func NewClient() (*client.Client, error) {
	cln, err := client.NewClientWithOpts(
		client.WithHost(DefaultDockerHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the Docker daemon: %w", err)
	}
	return cln, nil
}

// NetNSRef returns a filesystem path referencing the network namespace of the
// container with the specified name (or ID), such as "/proc/666/ns/net". The
// container must be running.
func NetNSRef(ctx context.Context, moby ContainerInspector, name string) (string, error) {
	details, err := moby.ContainerInspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("cannot inspect container '%s': %w", name, err)
	}
	if details.ContainerJSONBase == nil || details.State == nil || details.State.Pid == 0 {
		// when asked by ID, tell the user the container's name instead.
		if cname := ContainerName(details); cname != "" {
			name = cname
		}
		return "", fmt.Errorf("container '%s' is not running", name)
	}
	return fmt.Sprintf("/proc/%d/ns/net", details.State.Pid), nil
}

// ContainerName returns the name of a container without Docker's legacy "/"
// prefix.
func ContainerName(details types.ContainerJSON) string {
	if details.ContainerJSONBase == nil {
		return ""
	}
	return strings.TrimPrefix(details.Name, "/") // argh, Docker's "/name" legacy!
}
