package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// commandRunner executes a command and returns its stdout and stderr.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// DockerCLI is a ContainerRuntime backed by the docker command line client.
type DockerCLI struct {
	binary string
	run    commandRunner
}

// NewDockerCLI creates a runtime that invokes binary, "docker" when empty.
func NewDockerCLI(binary string) *DockerCLI {
	if binary == "" {
		binary = "docker"
	}
	return &DockerCLI{binary: binary, run: execCommand}
}

// Ping implements ContainerRuntime.
func (d *DockerCLI) Ping(ctx context.Context) error {
	_, stderr, err := d.run(ctx, d.binary, "version", "--format", "{{.Server.Version}}")
	if err != nil {
		return commandError("docker version", err, stderr)
	}
	return nil
}

// ContainerStatus implements ContainerRuntime.
func (d *DockerCLI) ContainerStatus(ctx context.Context, name string) (ContainerStatus, error) {
	stdout, stderr, err := d.run(ctx, d.binary, "inspect", "--type", "container", "--format", "{{.State.Status}}", name)
	if err != nil {
		if strings.Contains(strings.ToLower(string(stderr)), "no such") {
			return ContainerStatus{State: ContainerNotFound}, nil
		}
		return ContainerStatus{}, commandError("docker inspect "+name, err, stderr)
	}

	raw := strings.TrimSpace(string(stdout))
	if raw == "running" {
		return ContainerStatus{State: ContainerRunning, Raw: raw}, nil
	}
	return ContainerStatus{State: ContainerNotRunning, Raw: raw}, nil
}

func commandError(cmd string, err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return fmt.Errorf("%s: %w: %s", cmd, err, msg)
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
