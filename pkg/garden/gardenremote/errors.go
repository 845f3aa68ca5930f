package gardenremote

import "github.com/Abraxas-365/verdant/pkg/errx"

var remoteErrors = errx.NewRegistry("GARDEN_REMOTE")

var (
	ErrRequest = remoteErrors.Register("REQUEST", errx.TypeExternal, 502, "Plant service request failed")
	ErrStatus  = remoteErrors.Register("STATUS", errx.TypeExternal, 502, "Plant service returned an error status")
	ErrDecode  = remoteErrors.Register("DECODE", errx.TypeExternal, 502, "Failed to decode plant service response")
)
