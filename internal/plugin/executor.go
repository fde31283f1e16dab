package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// Executor handles the execution of plugins with timeout support.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor with the given per-plugin timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Execute runs plugin with req on stdin and parses its stdout as a
// Response. The run is bounded by ctx and the executor timeout.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.WaitDelay = time.Second

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("plugin execution timeout after %s", e.timeout)
	}
	if err != nil {
		if stderrStr := stderr.String(); stderrStr != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, stderrStr)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}

// Notify sends event for take to every subscribed plugin in name order.
// Failures are logged and joined; one failing plugin does not stop the rest.
func Notify(ctx context.Context, m *Manager, e *Executor, event string, take Take) error {
	var errs []error
	for _, p := range m.Subscribers(event) {
		resp, err := e.Execute(ctx, p, &Request{
			Event:  event,
			Take:   take,
			Config: p.Manifest.Config,
		})
		if err == nil && !resp.Success {
			err = errors.New(resp.Error)
		}
		if err != nil {
			log.Printf("plugin %s: %v", p.Manifest.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Manifest.Name, err))
			continue
		}
		for _, f := range resp.Files {
			log.Printf("plugin %s wrote %s", p.Manifest.Name, f)
		}
	}
	return errors.Join(errs...)
}
