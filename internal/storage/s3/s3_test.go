package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratacache/stratacache/pkg/types"
)

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")
}

func TestNew_BuildsClientWithoutNetwork(t *testing.T) {
	// Static credentials and an explicit endpoint keep construction fully
	// offline; the SDK only talks to the endpoint on the first call.
	b, err := New(context.Background(), Config{
		Bucket:          "records",
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:1",
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		MaxRetries:      1,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "records", b.bucket)
	require.NoError(t, b.Close())
}

func TestBackend_UnreachableEndpoint(t *testing.T) {
	b, err := New(context.Background(), Config{
		Bucket:          "records",
		Region:          "us-east-1",
		Prefix:          "stratacache/",
		Endpoint:        "http://127.0.0.1:1",
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		MaxRetries:      1,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// A dead endpoint is a transient failure, never an absent record.
	_, rerr := b.Read(ctx, "k")
	require.Error(t, rerr)
	assert.NotErrorIs(t, rerr, types.ErrNotFound)
	assert.Contains(t, rerr.Error(), "get object k")

	derr := b.Delete(ctx, "k")
	require.Error(t, derr)
	assert.Contains(t, derr.Error(), "delete object k")
}

func TestBackend_ObjectKeyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{"with prefix", "stratacache/", "user:1", "stratacache/user:1"},
		{"empty prefix", "", "user:1", "user:1"},
		{"nested prefix", "env/prod/", "k", "env/prod/k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Backend{prefix: tt.prefix}
			if got := b.objectKey(tt.key); got != tt.want {
				t.Errorf("objectKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestIsErrorType(t *testing.T) {
	noSuchKey := &s3types.NoSuchKey{}

	assert.True(t, isErrorType[*s3types.NoSuchKey](noSuchKey))
	assert.True(t, isErrorType[*s3types.NoSuchKey](fmt.Errorf("api call: %w", noSuchKey)),
		"wrapped API errors must still match")
	assert.False(t, isErrorType[*s3types.NoSuchKey](errors.New("connection reset")))
	assert.False(t, isErrorType[*s3types.NoSuchBucket](noSuchKey))
}
