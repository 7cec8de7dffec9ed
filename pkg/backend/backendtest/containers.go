//go:build integration

package backendtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartContainer starts req and returns host:port of its first exposed port.
// When envVar is set in the environment its value is returned instead and no
// container is started, so CI can point tests at shared services.
func StartContainer(t *testing.T, envVar string, req testcontainers.ContainerRequest) string {
	t.Helper()
	if addr := os.Getenv(envVar); addr != "" {
		return addr
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, req.ExposedPorts[0])
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

// Listening waits for port to accept connections.
func Listening(port string) wait.Strategy {
	return wait.ForListeningPort(port).WithStartupTimeout(2 * time.Minute)
}
