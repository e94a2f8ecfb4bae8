// Package container wraps the Docker SDK behind the driver contract from
// spec §4.3: pull, create, start, stop, remove, exec, inspect, logs, wait,
// stats, and label-filtered listing for every session-owned container.
package container

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/kandev/raworc/internal/common/config"
	"github.com/kandev/raworc/internal/common/logger"
)

// ManagedLabel marks every container this control plane owns, so
// reconciliation and discovery never touch containers it didn't create.
const ManagedLabel = "raworc.managed"

// SessionLabel and NameLabel identify which session a container belongs to.
const (
	SessionLabel = "raworc.session.id"
	NameLabel    = "raworc.session.name"
)

// cpuQuotaPeriod is Docker's CFS scheduler period in microseconds; a quota
// of cpuLimit*cpuQuotaPeriod grants cpuLimit CPUs on average.
const cpuQuotaPeriod = int64(100000)

// keepAliveCmd is the default entrypoint override that keeps a session
// container running when its image has no long-lived foreground process of
// its own — the in-container agent is expected to be started by the image's
// own entrypoint; this is a fallback only.
var keepAliveCmd = []string{"sh", "-c", "tail -f /dev/null"}

// SessionSpec describes the container backing one session.
type SessionSpec struct {
	SessionID      string
	SessionName    string
	Image          string
	HostVolumePath string // bind-mounted to /workspace
	CPULimit       float64
	MemoryLimit    int64 // bytes; memory-swap is pinned equal to disable swap
	Network        string
	APIURL         string
	SessionToken   string
	StartingPrompt string
	Cmd            []string // overrides keepAliveCmd when set
}

// Info mirrors the subset of container state the lifecycle worker and
// reconciliation loops need.
type Info struct {
	ID         string
	Name       string
	Image      string
	State      string // created, running, paused, restarting, removing, exited, dead
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
	Health     string
}

// ExecResult is the outcome of an execute_command task.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Client wraps the Docker client with Raworc's session-container conventions.
type Client struct {
	cli    *client.Client
	logger *logger.Logger
}

// NewClient creates a new container driver client.
func NewClient(cfg config.DockerConfig, log *logger.Logger) (*Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	log.Info("container driver ready", zap.String("host", cfg.Host), zap.String("api_version", cfg.APIVersion))
	return &Client{cli: cli, logger: log}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping checks whether the container engine is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

// PullImage ensures ref is locally available. Streaming pull progress is
// discarded; a failed pull is the only observable outcome besides success.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	reader, err := c.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("read pull output for %s: %w", ref, err)
	}
	return nil
}

// HasImage reports whether ref already exists locally.
func (c *Client) HasImage(ctx context.Context, ref string) (bool, error) {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, err
}

// CreateSessionContainer creates (but does not start) the container for a
// session, applying the label/hostname/env contract and resource caps from
// spec §4.3.
func (c *Client) CreateSessionContainer(ctx context.Context, spec SessionSpec) (string, error) {
	cmd := spec.Cmd
	if len(cmd) == 0 {
		cmd = keepAliveCmd
	}

	env := []string{
		"SESSION_ID=" + spec.SessionID,
		"SESSION_NAME=" + spec.SessionName,
		"STARTING_PROMPT=" + spec.StartingPrompt,
		"RAWORC_API_URL=" + spec.APIURL,
		"RAWORC_SESSION_TOKEN=" + spec.SessionToken,
	}

	labels := map[string]string{
		ManagedLabel: "true",
		SessionLabel: spec.SessionID,
		NameLabel:    spec.SessionName,
	}

	containerCfg := &container.Config{
		Image:      spec.Image,
		Cmd:        cmd,
		Env:        env,
		Hostname:   "session-" + spec.SessionID,
		WorkingDir: "/workspace",
		Labels:     labels,
	}

	quota := int64(spec.CPULimit * float64(cpuQuotaPeriod))
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: spec.HostVolumePath,
			Target: "/workspace",
		}},
		Resources: container.Resources{
			Memory:     spec.MemoryLimit,
			MemorySwap: spec.MemoryLimit, // equal to memory disables swap
			CPUQuota:   quota,
			CPUPeriod:  cpuQuotaPeriod,
		},
	}
	if spec.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(spec.Network)
	}

	name := "raworc-session-" + spec.SessionID
	resp, err := c.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("create container for session %s: %w", spec.SessionID, err)
	}
	return resp.ID, nil
}

// Start starts a container.
func (c *Client) Start(ctx context.Context, containerID string) error {
	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", containerID, err)
	}
	return nil
}

// Stop stops a container, giving it grace to exit cleanly.
func (c *Client) Stop(ctx context.Context, containerID string, grace time.Duration) error {
	seconds := int(grace.Seconds())
	if err := c.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("stop container %s: %w", containerID, err)
	}
	return nil
}

// Remove removes a container and its anonymous volumes.
func (c *Client) Remove(ctx context.Context, containerID string, force bool) error {
	err := c.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force, RemoveVolumes: true})
	if err != nil {
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	return nil
}

// Inspect returns the current state of a container.
func (c *Client) Inspect(ctx context.Context, containerID string) (*Info, error) {
	inspect, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	info := &Info{
		ID:       inspect.ID,
		Name:     inspect.Name,
		Image:    inspect.Config.Image,
		State:    inspect.State.Status,
		Status:   inspect.State.Status,
		ExitCode: inspect.State.ExitCode,
	}
	if inspect.State.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
			info.StartedAt = t
		}
	}
	if inspect.State.FinishedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, inspect.State.FinishedAt); err == nil {
			info.FinishedAt = t
		}
	}
	if inspect.State.Health != nil {
		info.Health = inspect.State.Health.Status
	}
	return info, nil
}

// IsRunning reports whether the container's observed state is "running".
func (c *Client) IsRunning(ctx context.Context, containerID string) (bool, error) {
	info, err := c.Inspect(ctx, containerID)
	if err != nil {
		return false, err
	}
	return info.State == "running", nil
}

// Wait blocks until the container stops running and returns its exit code.
func (c *Client) Wait(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return -1, fmt.Errorf("wait container %s: %w", containerID, err)
		}
		return -1, nil
	case status := <-statusCh:
		return status.StatusCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Logs returns a reader over the container's combined stdout/stderr stream.
func (c *Client) Logs(ctx context.Context, containerID string, tail string) (io.ReadCloser, error) {
	reader, err := c.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return nil, fmt.Errorf("get logs for container %s: %w", containerID, err)
	}
	return reader, nil
}

// Exec runs a command inside a running container and collects its output.
func (c *Client) Exec(ctx context.Context, containerID string, cmd []string) (*ExecResult, error) {
	created, err := c.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("exec create in container %s: %w", containerID, err)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach in container %s: %w", containerID, err)
	}
	defer attach.Close()

	stdout, err := io.ReadAll(attach.Reader)
	if err != nil {
		return nil, fmt.Errorf("read exec output in container %s: %w", containerID, err)
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect in container %s: %w", containerID, err)
	}

	return &ExecResult{ExitCode: inspect.ExitCode, Stdout: string(stdout)}, nil
}

// Stats returns a reader over a single resource-usage snapshot for the
// container; the caller must close it.
func (c *Client) Stats(ctx context.Context, containerID string) (io.ReadCloser, error) {
	resp, err := c.cli.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("get stats for container %s: %w", containerID, err)
	}
	return resp.Body, nil
}

// ListManaged enumerates every container this control plane owns.
func (c *Client) ListManaged(ctx context.Context) ([]Info, error) {
	args := filters.NewArgs()
	args.Add("label", ManagedLabel+"=true")

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list managed containers: %w", err)
	}

	infos := make([]Info, 0, len(containers))
	for _, ctr := range containers {
		name := ""
		if len(ctr.Names) > 0 {
			name = ctr.Names[0]
			if len(name) > 0 && name[0] == '/' {
				name = name[1:]
			}
		}
		infos = append(infos, Info{ID: ctr.ID, Name: name, Image: ctr.Image, State: ctr.State, Status: ctr.Status})
	}
	return infos, nil
}
