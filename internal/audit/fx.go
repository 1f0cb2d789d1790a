package audit

import (
	"github.com/drivelane/paycore/internal/audit/repository"
	"github.com/drivelane/paycore/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
