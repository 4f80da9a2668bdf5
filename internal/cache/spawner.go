package cache

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// RefreshRequest describes one background refresh of a cache key.
type RefreshRequest struct {
	Key         string
	Fingerprint Fingerprint

	// Run performs the refresh in the current process. Spawners that hand the
	// work to another process ignore it.
	Run func()
}

// Spawner detaches a refresh from the caller. The caller never observes the
// outcome except through its effect on the cache.
type Spawner interface {
	Spawn(req RefreshRequest) error
}

// GoroutineSpawner runs refreshes on goroutines of the current process. It is
// used by long-lived callers and tests; refreshes die with the process.
type GoroutineSpawner struct {
	wg sync.WaitGroup
}

// Spawn implements Spawner.
func (s *GoroutineSpawner) Spawn(req RefreshRequest) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		req.Run()
	}()
	return nil
}

// Wait blocks until every spawned refresh has returned.
func (s *GoroutineSpawner) Wait() {
	s.wg.Wait()
}

// ProcessSpawner re-executes a program, typically the running binary, to
// refresh a key in a separate process that outlives the caller. The child is
// started in its own session with no stdio attached and is never waited on.
type ProcessSpawner struct {
	// Path of the executable. Defaults to os.Executable().
	Path string

	// Args returns the arguments (without argv[0]) that make the child refresh
	// the given request.
	Args func(req RefreshRequest) []string

	// Env is appended to the current environment of the child.
	Env []string
}

// Spawn implements Spawner.
func (s *ProcessSpawner) Spawn(req RefreshRequest) error {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		path = exe
	}

	cmd := exec.Command(path, s.Args(req)...) //nolint:gosec
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start refresh process: %w", err)
	}
	// Not waited on; the child is reparented when we exit.
	return cmd.Process.Release()
}
