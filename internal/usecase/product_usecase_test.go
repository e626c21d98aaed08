package usecase_test

import (
	"context"
	"strings"
	"testing"

	"ecinventory/internal/infra/memory"
	"ecinventory/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductUsecase_AdminCreateProduct(t *testing.T) {
	s := memory.NewStore()
	uc := usecase.NewProductUsecase(s.Products())

	p, err := uc.AdminCreateProduct(context.Background(), usecase.AdminCreateProductInput{
		Name:              "  coffee beans ",
		Description:       "1kg",
		InitialStock:      100,
		LowStockThreshold: 20,
	})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "coffee beans", p.Name)
	assert.Equal(t, int64(100), p.Stock)

	got, err := uc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, int64(20), got.LowStockThreshold)
}

func TestProductUsecase_AdminCreateProduct_Invalid(t *testing.T) {
	uc := usecase.NewProductUsecase(memory.NewStore().Products())

	tests := []struct {
		name string
		in   usecase.AdminCreateProductInput
		kind usecase.ErrorKind
	}{
		{name: "empty name", in: usecase.AdminCreateProductInput{Name: " "}, kind: usecase.KindInvalidInput},
		{name: "long name", in: usecase.AdminCreateProductInput{Name: strings.Repeat("a", 256)}, kind: usecase.KindInvalidInput},
		{name: "negative stock", in: usecase.AdminCreateProductInput{Name: "a", InitialStock: -1}, kind: usecase.KindInvalidQuantity},
		{name: "negative threshold", in: usecase.AdminCreateProductInput{Name: "a", LowStockThreshold: -1}, kind: usecase.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.AdminCreateProduct(context.Background(), tt.in)
			assertKind(t, err, tt.kind)
		})
	}
}

func TestProductUsecase_GetProduct_NotFound(t *testing.T) {
	uc := usecase.NewProductUsecase(memory.NewStore().Products())

	_, err := uc.GetProduct(context.Background(), 1)
	assertKind(t, err, usecase.KindProductNotFound)

	_, err = uc.GetProduct(context.Background(), -1)
	assertKind(t, err, usecase.KindProductNotFound)
}
