package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestMetaRoundTrip(t *testing.T) {
	ctx := WithRequestMeta(context.Background(), RequestMeta{
		RequestID: " req-123 ",
		IPAddress: "10.0.0.7",
		UserAgent: "curl/8.5",
	})
	meta := RequestMetaFromContext(ctx)
	assert.Equal(t, "req-123", meta.RequestID)
	assert.Equal(t, "10.0.0.7", meta.IPAddress)
	assert.Equal(t, "curl/8.5", meta.UserAgent)

	ctx = WithRequestID(ctx, "req-456")
	meta = RequestMetaFromContext(ctx)
	assert.Equal(t, "req-456", meta.RequestID)
	assert.Equal(t, "10.0.0.7", meta.IPAddress)
}

func TestRequestMetaEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithRequestMeta(ctx, RequestMeta{}))
	assert.Equal(t, RequestMeta{}, RequestMetaFromContext(ctx))
}

func TestSnapshot(t *testing.T) {
	assert.Nil(t, Snapshot(nil))
	assert.JSONEq(t, `{"name":"Acme"}`, string(Snapshot(map[string]string{"name": "Acme"})))
	assert.Nil(t, Snapshot(func() {}))
}
