package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/pkg/contextx"
	"github.com/wyfcoding/storefront/pkg/db/dbtest"
)

type counter struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}

func TestInTx_CommitAndRollback(t *testing.T) {
	d := dbtest.New(t, &counter{})
	ctx := context.Background()

	err := d.InTx(ctx, func(ctx context.Context) error {
		_, ok := contextx.TxFrom(ctx)
		assert.True(t, ok)
		return d.Conn(ctx).Create(&counter{Name: "a", Value: 1}).Error
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = d.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, d.Conn(ctx).Create(&counter{Name: "b", Value: 1}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, d.Conn(ctx).Model(&counter{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestInTx_Nested(t *testing.T) {
	d := dbtest.New(t, &counter{})
	ctx := context.Background()

	err := d.InTx(ctx, func(outer context.Context) error {
		txOuter, _ := contextx.TxFrom(outer)
		return d.InTx(outer, func(inner context.Context) error {
			txInner, _ := contextx.TxFrom(inner)
			assert.Same(t, txOuter, txInner)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestUpsertWithConflict(t *testing.T) {
	d := dbtest.New(t, &counter{})
	ctx := context.Background()

	require.NoError(t, d.UpsertWithConflict(ctx, &counter{Name: "x", Value: 1}, []string{"name"}, nil))
	require.NoError(t, d.UpsertWithConflict(ctx, &counter{Name: "x", Value: 5}, []string{"name"}, nil))

	var c counter
	require.NoError(t, d.Conn(ctx).First(&c, "name = ?", "x").Error)
	assert.Equal(t, int64(1), c.Value)
}
