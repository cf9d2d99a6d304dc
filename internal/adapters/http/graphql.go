package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/paulmach/orb"

	"github.com/georisk/georisk/internal/core/domain"
)

func ringCoordinates(ring orb.Ring) [][]float64 {
	out := make([][]float64, len(ring))
	for i, p := range ring {
		out[i] = []float64{p.Lon(), p.Lat()}
	}
	return out
}

func pointArgs(p graphql.ResolveParams, defaultRadius float64) (domain.GeoPoint, float64) {
	center := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)}
	radius := defaultRadius
	if r, ok := p.Args["radius"].(float64); ok {
		radius = r
	}
	return center, radius
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	areaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Area",
		Fields: graphql.Fields{
			"center":      &graphql.Field{Type: geoPointType},
			"radius_m":    &graphql.Field{Type: graphql.Float},
			"vertices":    &graphql.Field{Type: graphql.Int},
			"coordinates": &graphql.Field{Type: graphql.NewList(graphql.NewList(graphql.Float)), Description: "Closed ring of [lng, lat] pairs"},
		},
	})

	assessmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Assessment",
		Fields: graphql.Fields{
			"center":              &graphql.Field{Type: geoPointType},
			"radius_m":            &graphql.Field{Type: graphql.Float},
			"risk_level":          &graphql.Field{Type: graphql.String},
			"level_label":         &graphql.Field{Type: graphql.String},
			"nearest_water_body":  &graphql.Field{Type: graphql.String},
			"distance_to_water_m": &graphql.Field{Type: graphql.Float},
			"relative_drop_m":     &graphql.Field{Type: graphql.Float},
			"narrative":           &graphql.Field{Type: graphql.String},
			"fill_color":          &graphql.Field{Type: graphql.String},
		},
	})

	locationArgs := graphql.FieldConfigArgument{
		"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"lng":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"radius": &graphql.ArgumentConfig{Type: graphql.Float, Description: "Radius in meters"},
	}
	defaultRadius := deps.Session.Coordinator.DefaultRadius

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"area": &graphql.Field{
				Type:        areaType,
				Description: "Analysis polygon around a point",
				Args:        locationArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center, radius := pointArgs(p, defaultRadius)
					ring, err := deps.Assessments.Area(center, radius)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"center":      center,
						"radius_m":    radius,
						"vertices":    len(ring) - 1,
						"coordinates": ringCoordinates(ring),
					}, nil
				},
			},
			"assess": &graphql.Field{
				Type:        assessmentType,
				Description: "Query the risk backend for the area around a point",
				Args:        locationArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center, radius := pointArgs(p, defaultRadius)
					a, err := deps.Assessments.Assess(p.Context, center, radius)
					if err != nil {
						return nil, err
					}
					out := map[string]interface{}{
						"center":              center,
						"radius_m":            radius,
						"risk_level":          string(a.Result.Level),
						"level_label":         a.Result.Level.Label(),
						"nearest_water_body":  a.Result.NearestWaterBody,
						"distance_to_water_m": a.Result.DistanceToWaterMeters,
						"narrative":           a.Result.Narrative,
						"fill_color":          a.Overlay.FillColor,
					}
					if a.Result.RelativeDropMeters != nil {
						out["relative_drop_m"] = *a.Result.RelativeDropMeters
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
