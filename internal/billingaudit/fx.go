package billingaudit

import (
	"github.com/smallbiznis/netbill/internal/billingaudit/repository"
	"github.com/smallbiznis/netbill/internal/billingaudit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingaudit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
