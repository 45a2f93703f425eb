package providers

import (
	"github.com/smallbiznis/netbill/internal/providers/pdf"
	"github.com/smallbiznis/netbill/internal/providers/whatsapp"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	whatsapp.Module,
	pdf.Module,
)
