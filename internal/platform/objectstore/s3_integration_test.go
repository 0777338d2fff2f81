//go:build integration

package objectstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezclaim/pkg/platform/sentinel"
	"ezclaim/pkg/testutil/containers"
)

func send(t *testing.T, req *PresignedRequest, body []byte) *http.Response {
	t.Helper()
	httpReq, err := http.NewRequest(req.Method, req.URL, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range req.Headers {
		if k == "Host" {
			continue
		}
		httpReq.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestPresignedRoundTrip(t *testing.T) {
	minio := containers.NewMinioContainer(t)
	cfg := minio.Config("claims-photos")
	ctx := context.Background()

	client, err := New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx, cfg.Bucket))
	require.NoError(t, client.EnsureBucket(ctx, cfg.Bucket), "second call is a no-op")

	const key = "photos/p1"
	assert.ErrorIs(t, client.Stat(ctx, cfg.Bucket, key), sentinel.ErrNotFound)

	put, err := client.PresignPut(ctx, cfg.Bucket, key, "image/jpeg", cfg.PresignTTL)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, put.Method)
	resp := send(t, put, []byte("jpeg-bytes"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, client.Stat(ctx, cfg.Bucket, key))

	get, err := client.PresignGet(ctx, cfg.Bucket, key, cfg.PresignTTL)
	require.NoError(t, err)
	resp = send(t, get, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))

	require.NoError(t, client.Delete(ctx, cfg.Bucket, key))
	require.NoError(t, client.Delete(ctx, cfg.Bucket, key), "deleting twice succeeds")
	assert.ErrorIs(t, client.Stat(ctx, cfg.Bucket, key), sentinel.ErrNotFound)
}
