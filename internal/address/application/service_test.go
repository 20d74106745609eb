package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/address/application"
	"github.com/wyfcoding/storefront/internal/address/domain"
	"github.com/wyfcoding/storefront/internal/address/infrastructure/persistence"
	"github.com/wyfcoding/storefront/pkg/db/dbtest"
	"github.com/wyfcoding/storefront/pkg/errorx"
)

func newService(t *testing.T) *application.AddressService {
	t.Helper()
	d := dbtest.New(t, &domain.ShippingAddress{})
	return application.NewAddressService(persistence.NewAddressRepository(d))
}

func sampleCommand(userID string) application.CreateAddressCommand {
	return application.CreateAddressCommand{
		UserID:        userID,
		RecipientName: " Ana Souza ",
		Street:        "Rua das Flores",
		Number:        "100",
		Neighborhood:  "Centro",
		City:          "São Paulo",
		State:         "SP",
		ZipCode:       "01000-000",
		Phone:         "+5511999990000",
		Email:         "ana@example.com",
		TaxID:         "123.456.789-09",
	}
}

func TestAddressService_CreateListGet(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, sampleCommand("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", a.RecipientName)
	assert.Equal(t, "BR", a.Country)

	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other, err := svc.List(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	got, err := svc.GetOwned(ctx, "user-1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = svc.GetOwned(ctx, "user-2", a.ID)
	assert.True(t, errorx.Is(err, errorx.KindAuthorization))

	_, err = svc.GetOwned(ctx, "user-1", "missing")
	assert.True(t, errorx.Is(err, errorx.KindNotFound))
}

func TestAddressService_Delete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, sampleCommand("user-1"))
	require.NoError(t, err)

	err = svc.Delete(ctx, "user-2", a.ID)
	assert.True(t, errorx.Is(err, errorx.KindAuthorization))

	require.NoError(t, svc.Delete(ctx, "user-1", a.ID))

	_, err = svc.GetOwned(ctx, "user-1", a.ID)
	assert.True(t, errorx.Is(err, errorx.KindNotFound))
}
