//go:build wireinject
// +build wireinject

package di

import (
	"ReserveDesk/pkg/config"
	"ReserveDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Audit backend
		ProvideAuditSink,
		ProvideAuditRecorder,

		// Engine and pipeline
		ProvideAllocator,
		ProvideCalcPipeline,
		ProvideReservesService,

		// HTTP
		ProvideCache,
		ProvideReservesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
