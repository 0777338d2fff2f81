//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ezclaim/internal/platform/config"
)

const (
	minioUser     = "ezclaim"
	minioPassword = "ezclaim-secret"
)

// MinioContainer is an S3-compatible bucket server for object store tests.
type MinioContainer struct {
	Container testcontainers.Container
	Endpoint  string
}

// NewMinioContainer starts MinIO with static credentials.
func NewMinioContainer(t *testing.T) *MinioContainer {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-10-13T13-34-11Z",
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "http")
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}
	return &MinioContainer{Container: container, Endpoint: endpoint}
}

// Config points an object store client at the container.
func (m *MinioContainer) Config(bucket string) config.ObjectStore {
	return config.ObjectStore{
		Endpoint:     m.Endpoint,
		Region:       "us-east-1",
		AccessKey:    minioUser,
		SecretKey:    minioPassword,
		Bucket:       bucket,
		UsePathStyle: true,
		PresignTTL:   time.Minute,
	}
}
