// Package api holds the published HTTP API description.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3 document of the planner API
//
//go:embed openapi.yaml
var OpenAPI []byte
