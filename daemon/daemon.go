// Package daemon runs the flowchart API server in the background.
//
// A background server is described by three files in its run directory:
//
//	flowpad-serve.pid    the server's process id, one decimal line
//	flowpad-serve.ready  written once the server accepts connections
//	flowpad-serve.log    the server's stdout and stderr
//
// The run directory is the project's .flowpad directory when there is one,
// and a per-user state directory otherwise (see GetDefaultRunDir).
//
// Start a server and wait for it:
//
//	pid, exitCh, err := daemon.SpawnBackground(runDir, []string{"serve"})
//	if err != nil {
//	    return err
//	}
//	if err := daemon.WaitReady(runDir, exitCh, 10*time.Second); err != nil {
//	    return err
//	}
//
// Stop it:
//
//	pid, _ := daemon.GetRunningPID(runDir)
//	daemon.StopProcess(runDir, pid)
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/flowpad/flowpad/internal/fileutil"
)

const (
	pidFileName   = "flowpad-serve.pid"
	logFileName   = "flowpad-serve.log"
	readyFileName = "flowpad-serve.ready"

	// BackgroundEnv is set to "1" in the environment of spawned servers.
	BackgroundEnv = "FLOWPAD_BACKGROUND"

	readyPollInterval = 100 * time.Millisecond
)

// ErrExited is returned by WaitReady when the server exits before it is ready.
var ErrExited = errors.New("background server exited during startup")

// GetDefaultRunDir returns the per-user directory for background server files.
//
//   - Linux:   $XDG_STATE_HOME/flowpad or ~/.local/state/flowpad
//   - macOS:   ~/Library/Logs/flowpad
//   - Windows: %LOCALAPPDATA%\flowpad
//
// The directory may not exist yet.
func GetDefaultRunDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", "flowpad"), nil
	case "windows":
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "flowpad"), nil
		}
		return filepath.Join(homeDir, "AppData", "Local", "flowpad"), nil
	default:
		if base := os.Getenv("XDG_STATE_HOME"); base != "" {
			return filepath.Join(base, "flowpad"), nil
		}
		return filepath.Join(homeDir, ".local", "state", "flowpad"), nil
	}
}

// LogPath returns the log file a background server in runDir writes to.
func LogPath(runDir string) string {
	return filepath.Join(runDir, logFileName)
}

// WritePIDFile records the current process as the server for runDir. The
// returned lock keeps a second server from claiming the same directory; hold
// it until shutdown and release it after RemovePIDFile.
func WritePIDFile(runDir string) (*fileutil.FileLock, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	pidPath := filepath.Join(runDir, pidFileName)
	lock, err := fileutil.TryLock(pidPath + ".lock")
	if err != nil {
		return nil, fmt.Errorf("another flowpad server is running from %s: %w", runDir, err)
	}

	content := fmt.Sprintf("%d\n", os.Getpid())
	err = fileutil.WriteFileAtomically(pidPath, func(f *os.File) error {
		_, err := f.WriteString(content)
		return err
	})
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}
	return lock, nil
}

// ReadPIDFile returns the recorded server pid, or 0 when there is no PID
// file. It does not check that the process is alive; see GetRunningPID.
func ReadPIDFile(runDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(runDir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID, lock and ready files.
func RemovePIDFile(runDir string) error {
	pidPath := filepath.Join(runDir, pidFileName)
	_ = os.Remove(pidPath + ".lock")
	_ = RemoveReadyFile(runDir)

	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// GetRunningPID returns the pid of the live server for runDir, or 0. A PID
// file left by a dead process is removed.
func GetRunningPID(runDir string) (int, error) {
	pid, err := ReadPIDFile(runDir)
	if err != nil || pid == 0 {
		return 0, err
	}

	if !IsProcessRunning(pid) {
		_ = RemovePIDFile(runDir)
		return 0, nil
	}
	return pid, nil
}

// WriteReadyFile marks the server as accepting connections. addr is recorded
// so status can report where it listens.
func WriteReadyFile(runDir, addr string) error {
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), addr)
	if err := os.WriteFile(filepath.Join(runDir, readyFileName), []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write ready file: %w", err)
	}
	return nil
}

func RemoveReadyFile(runDir string) error {
	if err := os.Remove(filepath.Join(runDir, readyFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove ready file: %w", err)
	}
	return nil
}

// ReadyAddr returns the listen address from the ready file, or "" when the
// server has not reported ready.
func ReadyAddr(runDir string) string {
	data, err := os.ReadFile(filepath.Join(runDir, readyFileName))
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return ""
	}
	return strings.TrimSpace(lines[1])
}

func IsReady(runDir string) bool {
	_, err := os.Stat(filepath.Join(runDir, readyFileName))
	return err == nil
}

// WaitReady blocks until the server writes its ready file, exits, or timeout
// passes.
func WaitReady(runDir string, exitCh <-chan struct{}, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if IsReady(runDir) {
			return nil
		}
		select {
		case <-exitCh:
			if IsReady(runDir) {
				return nil
			}
			return fmt.Errorf("%w (see %s)", ErrExited, LogPath(runDir))
		case <-deadline.C:
			return fmt.Errorf("background server not ready after %s (see %s)", timeout, LogPath(runDir))
		case <-ticker.C:
		}
	}
}

// SpawnBackground re-executes the current binary with args as a detached
// process writing to runDir's log file. The returned channel is closed when
// the child exits, which lets callers notice a failed startup.
func SpawnBackground(runDir string, args []string) (int, <-chan struct{}, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return 0, nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	executable, err := os.Executable()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	return spawn(executable, LogPath(runDir), args)
}

func spawn(executable, logPath string, args []string) (int, <-chan struct{}, error) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	liveness, err := newLivenessCheck()
	if err != nil {
		return 0, nil, err
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), BackgroundEnv+"=1")
	cmd.SysProcAttr = sysProcAttr()
	liveness.configureCmd(cmd)

	if err := cmd.Start(); err != nil {
		liveness.cleanup()
		return 0, nil, fmt.Errorf("failed to start background process: %w", err)
	}

	return cmd.Process.Pid, liveness.start(cmd.Process.Pid), nil
}
