package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/db/dbtest"
	"github.com/wyfcoding/storefront/pkg/errorx"
)

func TestVariantRepository(t *testing.T) {
	d := dbtest.New(t, &domain.Product{}, &domain.ProductVariant{})
	ctx := context.Background()

	require.NoError(t, d.Create(&domain.Product{ID: "p-1", Name: "Tee", Slug: "tee"}).Error)
	require.NoError(t, d.Create(&domain.ProductVariant{ID: "v-1", ProductID: "p-1", Name: "Black M", PriceInCents: 15000}).Error)
	require.NoError(t, d.Create(&domain.ProductVariant{ID: "v-2", ProductID: "p-1", Name: "White M", PriceInCents: 8000}).Error)

	repo := NewVariantRepository(d)

	v, err := repo.GetVariant(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), v.PriceInCents)
	assert.Equal(t, "Tee - Black M", v.DisplayName())

	_, err = repo.GetVariant(ctx, "missing")
	assert.True(t, errorx.Is(err, errorx.KindNotFound))

	got, err := repo.GetVariants(ctx, []string{"v-1", "v-2", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(8000), got["v-2"].PriceInCents)

	empty, err := repo.GetVariants(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
