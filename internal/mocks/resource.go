package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/observer-server/internal/model"
)

// ResourceStore mocks model.ResourceStore.
type ResourceStore struct {
	mock.Mock
}

func (m *ResourceStore) List(ctx context.Context, query model.ResourceQuery) ([]model.Record, int, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]model.Record), args.Int(1), args.Error(2)
}

func (m *ResourceStore) Get(ctx context.Context, query model.ResourceQuery, id string) (model.Record, error) {
	args := m.Called(ctx, query, id)
	return args.Get(0).(model.Record), args.Error(1)
}
