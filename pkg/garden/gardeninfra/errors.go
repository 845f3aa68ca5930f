package gardeninfra

import "github.com/Abraxas-365/verdant/pkg/errx"

var infraErrors = errx.NewRegistry("GARDEN_INFRA")

var (
	ErrUpsert = infraErrors.Register("UPSERT", errx.TypeInternal, 500, "Failed to upsert plants")
	ErrQuery  = infraErrors.Register("QUERY", errx.TypeInternal, 500, "Failed to query plants")
	ErrPolicy = infraErrors.Register("POLICY", errx.TypeExternal, 502, "Refresh policy check failed")
)
