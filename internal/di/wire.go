//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"
)

// InitializeContainer builds the application container.
func InitializeContainer(ctx context.Context) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
