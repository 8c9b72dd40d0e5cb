package support

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// StartServer starts "mvgeo serve" with extra arguments on a free port.
func (testCtx *TestContext) StartServer(extraArgs string) error {
	port, err := freePort()
	if err != nil {
		return fmt.Errorf("failed to find a free port: %w", err)
	}
	testCtx.ServerPort = port

	args := []string{"serve", "--host", testCtx.ServerHost, "--port", strconv.Itoa(port)}
	args = append(args, strings.Fields(testCtx.substituteCommandVariables(extraArgs))...)

	cmd := exec.Command(binary(), args...) //nolint:gosec // test binary
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	testCtx.ServerOutput = &bytes.Buffer{}
	cmd.Stdout = testCtx.ServerOutput
	cmd.Stderr = testCtx.ServerOutput

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerCmd = cmd
	testCtx.ServerDone = make(chan error, 1)
	go func() { testCtx.ServerDone <- cmd.Wait() }()

	if err := testCtx.waitForServerReady(); err != nil {
		if stopErr := testCtx.StopServerProcess(); stopErr != nil {
			return fmt.Errorf("server failed to start and also failed to stop: %w; stop error: %w", err, stopErr)
		}
		return fmt.Errorf("server failed to start: %w\n%s", err, testCtx.ServerOutput)
	}
	return nil
}

// StopServerProcess stops the running server process.
func (testCtx *TestContext) StopServerProcess() error {
	if testCtx.ServerCmd == nil {
		return nil
	}
	defer func() { testCtx.ServerCmd = nil }()

	// Send SIGTERM for graceful shutdown
	if err := testCtx.ServerCmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		if killErr := testCtx.ServerCmd.Process.Kill(); killErr != nil {
			return fmt.Errorf("failed to kill server process: %w", killErr)
		}
	}

	select {
	case <-testCtx.ServerDone:
		return nil
	case <-time.After(15 * time.Second):
		_ = testCtx.ServerCmd.Process.Kill()
		return errors.New("server did not stop in time")
	}
}

// waitForServerReady waits for the server to respond to health checks.
func (testCtx *TestContext) waitForServerReady() error {
	timeout := time.Now().Add(10 * time.Second)

	for time.Now().Before(timeout) {
		select {
		case err := <-testCtx.ServerDone:
			testCtx.ServerDone <- err
			return fmt.Errorf("server exited early: %v", err)
		default:
		}
		if testCtx.isServerHealthy() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return errors.New("server did not become ready within timeout")
}

// isServerHealthy checks if the server responds to health endpoint.
func (testCtx *TestContext) isServerHealthy() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(testCtx.processServerURL() + "/health")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

func (testCtx *TestContext) processServerURL() string {
	return fmt.Sprintf("http://%s:%d", testCtx.ServerHost, testCtx.ServerPort)
}

// GetServerURL returns the base URL for the running server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer != nil && testCtx.HTTPTestServer.Server != nil {
		return testCtx.HTTPTestServer.Server.URL
	}
	return testCtx.processServerURL()
}

// SendSignalToServer sends a signal to the running server.
func (testCtx *TestContext) SendSignalToServer(signal os.Signal) error {
	if testCtx.ServerCmd == nil {
		return errors.New("no server process running")
	}
	return testCtx.ServerCmd.Process.Signal(signal)
}

// theServerShouldExitCleanly waits for the process and checks its status.
func (testCtx *TestContext) theServerShouldExitCleanly() error {
	if testCtx.ServerCmd == nil {
		return errors.New("no server process running")
	}
	select {
	case err := <-testCtx.ServerDone:
		testCtx.ServerCmd = nil
		if err != nil {
			return fmt.Errorf("server exited with error: %w\n%s", err, testCtx.ServerOutput)
		}
	case <-time.After(15 * time.Second):
		return errors.New("server did not exit after the signal")
	}
	if !strings.Contains(testCtx.ServerOutput.String(), "Graceful shutdown completed") {
		return fmt.Errorf("server log lacks the shutdown message:\n%s", testCtx.ServerOutput)
	}
	return nil
}
