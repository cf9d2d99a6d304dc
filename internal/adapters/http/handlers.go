package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/georisk/georisk/internal/core/domain"
)

type areaQuery struct {
	Lat    float64 `validate:"latitude"`
	Lng    float64 `validate:"longitude"`
	Radius float64 `validate:"gt=0"`
}

// parseAreaQuery reads lat, lng and an optional radius from the query string.
func parseAreaQuery(c *fiber.Ctx, defaultRadius float64) (areaQuery, error) {
	q := areaQuery{Radius: defaultRadius}

	lat, err := requiredFloat(c, "lat")
	if err != nil {
		return q, err
	}
	lng, err := requiredFloat(c, "lng")
	if err != nil {
		return q, err
	}
	q.Lat, q.Lng = lat, lng

	if raw := strings.TrimSpace(c.Query("radius")); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "radius must be a number")
		}
		q.Radius = r
	}

	if err := validate.Struct(q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return q, nil
}

func requiredFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" must be a number")
	}
	return v, nil
}

// AreaHandler returns the analysis polygon for a point and radius as a
// GeoJSON Feature. No backend call is made.
func AreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseAreaQuery(c, deps.Session.Coordinator.DefaultRadius)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		center := domain.GeoPoint{Lat: q.Lat, Lng: q.Lng}
		ring, err := deps.Assessments.Area(center, q.Radius)
		if err != nil {
			return errDomain(c, err)
		}

		return c.JSON(areaFeature(center, q.Radius, ring))
	}
}

// assessRequest is the body of POST /v1/risk.
type assessRequest struct {
	Lat    *float64 `json:"lat" validate:"required,latitude"`
	Lng    *float64 `json:"lng" validate:"required,longitude"`
	Radius *float64 `json:"radius" validate:"omitempty,gt=0"`
}

// RiskHandler runs a one-shot assessment of the circle around a point.
func RiskHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req assessRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		radius := deps.Session.Coordinator.DefaultRadius
		if req.Radius != nil {
			radius = *req.Radius
		}
		center := domain.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}

		ctx := c.UserContext()
		res, err := deps.Assessments.Assess(ctx, center, radius)
		if err != nil {
			LoggerFromCtx(ctx).Warn("assessment failed",
				"kind", domain.ErrorKind(err), "lat", center.Lat, "lng", center.Lng, "radius_m", radius, "error", err)
			return errDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(toAssessResponse(res))
	}
}
