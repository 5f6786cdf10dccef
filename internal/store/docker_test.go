package store

import (
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

// startContainer runs a throwaway container and waits until ready succeeds.
// The test is skipped when no Docker daemon is reachable.
func startContainer(t *testing.T, opts *dockertest.RunOptions, ready func(resource *dockertest.Resource) error) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("could not connect to docker: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}

	resource, err := pool.RunWithOptions(opts, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Skipf("could not start %s: %v", opts.Repository, err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("could not purge %s: %v", opts.Repository, err)
		}
	})

	pool.MaxWait = 120 * time.Second
	if err := pool.Retry(func() error { return ready(resource) }); err != nil {
		t.Fatalf("%s did not become ready: %v", opts.Repository, err)
	}
}
