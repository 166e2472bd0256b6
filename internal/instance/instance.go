// Package instance enforces a single coordinator per user session with a
// unix socket in the user runtime directory. The first launch listens;
// later launches dial the socket and hand over their argv.
package instance

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/mullionhq/mullion/internal/logger"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning reports that another coordinator holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// SecondLaunchFunc receives the argv of a later launch. Invoked on an
// accept goroutine; the coordinator posts the work to its run loop.
type SecondLaunchFunc func(args []string)

// Lock is the held single-instance lock.
type Lock struct {
	listener net.Listener
	path     string
	done     chan struct{}
	log      *zerolog.Logger
}

// SocketPath returns the per-user lock socket path.
func SocketPath() string {
	return filepath.Join(runtimeDir(), "mullion", "instance.sock")
}

// runtimeDir resolves the user runtime directory, falling back through the
// usual chain when XDG_RUNTIME_DIR is unset.
func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	candidate := fmt.Sprintf("/run/user/%d", os.Getuid())
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return os.TempDir()
}

// Acquire takes the single-instance lock at path. onSecond receives the
// argv handed over by each later launch. A live peer on the socket means
// ErrAlreadyRunning; a stale socket file is cleaned up and retried once.
func Acquire(path string, onSecond SecondLaunchFunc) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create runtime dir: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		// Either a live peer or a stale socket from a crashed run.
		conn, dialErr := net.DialTimeout("unix", path, time.Second)
		if dialErr == nil {
			conn.Close()
			return nil, ErrAlreadyRunning
		}
		if rmErr := os.Remove(path); rmErr != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", rmErr)
		}
		listener, err = net.Listen("unix", path)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
		}
	}

	l := &Lock{
		listener: listener,
		path:     path,
		done:     make(chan struct{}),
		log:      logger.WithComponent("instance"),
	}
	go l.acceptLoop(onSecond)
	l.log.Debug().Str("socket", path).Msg("Instance lock acquired")
	return l, nil
}

// Release drops the lock and removes the socket file.
func (l *Lock) Release() {
	close(l.done)
	l.listener.Close()
	os.Remove(l.path)
}

func (l *Lock) acceptLoop(onSecond SecondLaunchFunc) {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				l.log.Warn().Err(err).Msg("Instance socket accept error")
				return
			}
		}
		go l.handleConn(conn, onSecond)
	}
}

func (l *Lock) handleConn(conn net.Conn, onSecond SecondLaunchFunc) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	var args []string
	if err := json.Unmarshal(scanner.Bytes(), &args); err != nil {
		l.log.Warn().Err(err).Msg("Malformed second-launch handover")
		return
	}
	l.log.Info().Strs("args", args).Msg("Second launch detected")
	if onSecond != nil {
		onSecond(args)
	}
}

// NotifyRunning hands this launch's argv to the coordinator holding the
// lock at path.
func NotifyRunning(path string, args []string) error {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return fmt.Errorf("failed to reach running instance: %w", err)
	}
	defer conn.Close()

	line, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}
	line = append(line, '\n')
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("failed to hand over args: %w", err)
	}
	return nil
}
