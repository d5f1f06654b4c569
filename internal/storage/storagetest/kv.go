package storagetest

import (
	"context"
	"testing"

	"github.com/smallbiznis/quickinvoice/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKVContract checks the behaviour every storage.KV backend must share.
func RunKVContract(t *testing.T, kv storage.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "qi:draft", []byte(`{"v":1}`)))
		require.NoError(t, kv.Set(ctx, "qi:draft", []byte(`{"v":2}`)))

		got, err := kv.Get(ctx, "qi:draft")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "qi:a", []byte(`"a"`)))
		require.NoError(t, kv.Set(ctx, "qi:b", []byte(`"b"`)))
		require.NoError(t, kv.Remove(ctx, "qi:a"))

		_, err := kv.Get(ctx, "qi:a")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		got, err := kv.Get(ctx, "qi:b")
		require.NoError(t, err)
		assert.Equal(t, `"b"`, string(got))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "qi:gone", []byte(`[]`)))
		require.NoError(t, kv.Remove(ctx, "qi:gone"))

		_, err := kv.Get(ctx, "qi:gone")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, kv.Remove(ctx, "qi:gone"))
	})
}
