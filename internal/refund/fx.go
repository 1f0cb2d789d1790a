package refund

import (
	"github.com/drivelane/paycore/internal/refund/repository"
	"github.com/drivelane/paycore/internal/refund/service"
	"go.uber.org/fx"
)

var Module = fx.Module("refund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
