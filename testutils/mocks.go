package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockGeoResolver struct {
	mock.Mock
}

func (m *MockGeoResolver) Resolve(ctx context.Context, ipAddress string) string {
	args := m.Called(ctx, ipAddress)
	return args.String(0)
}

// StaticGeo answers every lookup with the same location.
type StaticGeo string

func (g StaticGeo) Resolve(_ context.Context, _ string) string {
	return string(g)
}
