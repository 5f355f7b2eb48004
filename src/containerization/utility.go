package containerization

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"coordworker/src/logging"
	"coordworker/src/model"
	"coordworker/src/store"
)

const sandboxNetworkName = "coordworker_sandbox"

// ScriptRunner executes task-record scripts inside a reusable sandboxed
// container. It serves as the executor for the "Script" task category: the
// record's description is treated as the script body and the remaining
// fields are passed in as a JSON payload.
type ScriptRunner struct {
	cli       *client.Client
	networkID string

	mu         sync.Mutex
	activeID   string
	lastUsedAt time.Time
}

func NewScriptRunner(cli *client.Client, networkID string) *ScriptRunner {
	return &ScriptRunner{cli: cli, networkID: networkID}
}

// EnsureSandboxNetwork creates or retrieves the sandbox network. The network
// allows external internet access; internal host access is blocked per
// container via ExtraHosts and iptables rules instead.
func EnsureSandboxNetwork(ctx context.Context, cli *client.Client) (string, error) {
	networks, err := cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list networks: %w", err)
	}
	for _, n := range networks {
		if n.Name == sandboxNetworkName {
			return n.ID, nil
		}
	}

	resp, err := cli.NetworkCreate(ctx, sandboxNetworkName, network.CreateOptions{
		Driver: "bridge",
	})
	if err != nil {
		return "", fmt.Errorf("create sandbox network: %w", err)
	}
	return resp.ID, nil
}

func (s *ScriptRunner) getOrCreateContainer(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		inspect, err := s.cli.ContainerInspect(ctx, s.activeID)
		if err == nil && inspect.State.Running {
			s.lastUsedAt = time.Now()
			// Sanitize before reuse in case a previous script left files behind.
			execCreate, err := s.cli.ContainerExecCreate(ctx, s.activeID, container.ExecOptions{
				User:         "root",
				AttachStdout: true,
				AttachStderr: true,
				Cmd: []string{"sh", "-c", `
					rm -f /script.py /payload.json
					find /tmp -mindepth 1 -delete 2>/dev/null || true
					find /home/sandboxuser -mindepth 1 -delete 2>/dev/null || true
				`},
			})
			if err != nil {
				return "", fmt.Errorf("create sanitize exec: %w", err)
			}
			execResp, err := s.cli.ContainerExecAttach(ctx, execCreate.ID, container.ExecStartOptions{})
			if err != nil {
				return "", fmt.Errorf("attach sanitize exec: %w", err)
			}
			execResp.Close()
			return s.activeID, nil
		}
		s.activeID = ""
	}

	imageName := os.Getenv("CONTAINER_IMAGE")
	if imageName == "" {
		imageName = "python:3.9-slim"
	}

	memoryMB, _ := strconv.ParseInt(envDefault("CONTAINER_MEMORY_MB", "512"), 10, 64)
	cpuLimit, _ := strconv.ParseFloat(envDefault("CONTAINER_CPU_LIMIT", "0.5"), 64)

	resp, err := s.cli.ContainerCreate(ctx, &container.Config{
		Image: imageName,
		Cmd:   []string{"sleep", "infinity"},
		Tty:   false,
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:   memoryMB * 1024 * 1024,
			NanoCPUs: int64(cpuLimit * math.Pow10(9)),
		},
		CapAdd: []string{"NET_ADMIN"},
		ExtraHosts: []string{
			"host.docker.internal:127.0.0.1",
			"gateway.docker.internal:127.0.0.1",
		},
	}, &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			sandboxNetworkName: {NetworkID: s.networkID},
		},
	}, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := s.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		s.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}

	// Block RFC1918 and link-local destinations, then add the sandbox user.
	setupExec, err := s.cli.ContainerExecCreate(ctx, resp.ID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd: []string{"sh", "-c", `
			apt-get update -qq && apt-get install -qq -y iptables > /dev/null 2>&1
			iptables -A OUTPUT -d 10.0.0.0/8 -j DROP 2>/dev/null || true
			iptables -A OUTPUT -d 172.16.0.0/12 -j DROP 2>/dev/null || true
			iptables -A OUTPUT -d 192.168.0.0/16 -j DROP 2>/dev/null || true
			iptables -A OUTPUT -d 169.254.0.0/16 -j DROP 2>/dev/null || true
			useradd -m -s /bin/bash sandboxuser 2>/dev/null || true
		`},
	})
	if err != nil {
		s.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("create setup exec: %w", err)
	}
	setupResp, err := s.cli.ContainerExecAttach(ctx, setupExec.ID, container.ExecStartOptions{})
	if err != nil {
		s.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("attach setup exec: %w", err)
	}
	_, _ = io.Copy(io.Discard, setupResp.Reader)
	setupResp.Close()

	setupInspect, err := s.cli.ContainerExecInspect(ctx, setupExec.ID)
	if err != nil || setupInspect.ExitCode != 0 {
		s.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("container setup failed (exit %d): %w", setupInspect.ExitCode, err)
	}

	s.activeID = resp.ID
	s.lastUsedAt = time.Now()
	logging.Log(fmt.Sprintf("New sandbox container created: %s", s.activeID[:12]), slog.LevelInfo)
	return s.activeID, nil
}

// Execute runs the task's script in the sandbox and returns its stdout as
// the outcome output. Shaped to register directly as the executor for the
// script category.
func (s *ScriptRunner) Execute(ctx context.Context, task model.TaskRecord) (model.Outcome, error) {
	if strings.TrimSpace(task.Description) == "" {
		return model.Outcome{}, &store.MalformedRecordError{
			RowIndex: task.RowIndex,
			Reason:   "script task has no script body in description",
		}
	}

	payload, err := json.Marshal(map[string]string{
		"id":           task.ID,
		"owner":        task.Owner,
		"category":     task.Category,
		"priority":     task.Priority,
		"dependencies": task.Dependencies,
		"notes":        task.Notes,
	})
	if err != nil {
		return model.Outcome{}, err
	}

	output, err := s.runScript(ctx, task.Description, string(payload))
	if err != nil {
		return model.Outcome{}, err
	}
	return model.Outcome{
		Status: model.StatusComplete,
		Output: output,
		Notes:  "script executed in sandbox",
	}, nil
}

func (s *ScriptRunner) runScript(ctx context.Context, script, payload string) (string, error) {
	containerID, err := s.getOrCreateContainer(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range []struct {
		name string
		mode int64
		data []byte
	}{
		{"script.py", 0755, []byte(script)},
		{"payload.json", 0644, []byte(payload)},
	} {
		if err := tw.WriteHeader(&tar.Header{Name: f.name, Mode: f.mode, Size: int64(len(f.data))}); err != nil {
			return "", err
		}
		if _, err := tw.Write(f.data); err != nil {
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		return "", err
	}

	if err := s.cli.CopyToContainer(ctx, containerID, "/", &buf, container.CopyToContainerOptions{}); err != nil {
		return "", fmt.Errorf("copy to container: %w", err)
	}

	execCreate, err := s.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		User:         "root", // chown first, then drop to sandboxuser
		AttachStdout: true,
		AttachStderr: true,
		Cmd: []string{"sh", "-c", `
			chown sandboxuser:sandboxuser /script.py /payload.json
			su sandboxuser -c "python /script.py /payload.json"
		`},
	})
	if err != nil {
		return "", fmt.Errorf("create exec: %w", err)
	}

	resp, err := s.cli.ContainerExecAttach(ctx, execCreate.ID, container.ExecStartOptions{})
	if err != nil {
		return "", fmt.Errorf("attach exec: %w", err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("read exec output: %w", err)
		}
	}

	inspect, err := s.cli.ContainerExecInspect(ctx, execCreate.ID)
	if err != nil {
		return stdout.String(), fmt.Errorf("inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return stdout.String(), fmt.Errorf("script exited %d: %s", inspect.ExitCode, stderr.String())
	}

	s.mu.Lock()
	s.lastUsedAt = time.Now()
	s.mu.Unlock()

	return stdout.String(), nil
}

// RunReaper removes the sandbox container after it has sat idle for timeout.
func (s *ScriptRunner) RunReaper(ctx context.Context, timeout time.Duration) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.activeID != "" && time.Since(s.lastUsedAt) > timeout {
				id := s.activeID
				s.activeID = ""
				s.mu.Unlock()

				logging.Log(fmt.Sprintf("Idle timeout reached for container %s, removing", id[:12]), slog.LevelInfo)
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.cli.ContainerRemove(cleanupCtx, id, container.RemoveOptions{Force: true})
				cancel()
			} else {
				s.mu.Unlock()
			}
		}
	}
}

// Cleanup force-removes the active container on shutdown.
func (s *ScriptRunner) Cleanup(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		logging.Log(fmt.Sprintf("Cleaning up active container %s", s.activeID[:12]), slog.LevelInfo)
		s.cli.ContainerRemove(ctx, s.activeID, container.RemoveOptions{Force: true})
		s.activeID = ""
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
