package pipeline

import (
	"errors"
	"net/http"

	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
)

var (
	ErrUnknownSource         = errors.New("video not found")
	ErrConfigurationMissing  = errors.New("no zones for this video")
	ErrInvalidZoneDefinition = errors.New("invalid zone definition")
	ErrInputUnavailable      = errors.New("input unavailable")
)

// Reason codes reported by the control surface.
const (
	ReasonUnknownSource         = "unknown_source"
	ReasonConfigurationMissing  = "configuration_missing"
	ReasonInvalidZoneDefinition = "invalid_zone_definition"
	ReasonInputUnavailable      = "input_unavailable"
	ReasonInternal              = "internal"
)

// Reason maps a start failure to a stable reason code.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSource):
		return ReasonUnknownSource
	case errors.Is(err, ErrConfigurationMissing), errors.Is(err, zones.ErrNotFound):
		return ReasonConfigurationMissing
	case errors.Is(err, ErrInvalidZoneDefinition), errors.Is(err, zones.ErrInvalidFormat):
		return ReasonInvalidZoneDefinition
	case errors.Is(err, ErrInputUnavailable):
		return ReasonInputUnavailable
	default:
		return ReasonInternal
	}
}

// HTTPStatus maps a start failure to an HTTP status code.
func HTTPStatus(err error) int {
	switch Reason(err) {
	case ReasonUnknownSource:
		return http.StatusNotFound
	case ReasonConfigurationMissing, ReasonInvalidZoneDefinition:
		return http.StatusBadRequest
	case ReasonInputUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
