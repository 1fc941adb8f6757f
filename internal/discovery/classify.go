package discovery

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	apihttp "github.com/PentesterFlow/apisurface/internal/http"
)

// maxDescribedKeys is how many object keys a JSON description lists.
const maxDescribedKeys = 3

// Classify turns a successful response for path into an endpoint.
func Classify(path string, resp *apihttp.Response) Endpoint {
	ep := Endpoint{Path: path, Method: MethodGET, APIType: REST}
	ct := strings.ToLower(resp.ContentType())

	switch {
	case strings.Contains(ct, "application/json"):
		ep.Description = describeJSON(resp.Body)
	case strings.Contains(ct, "image/"):
		ep.Description = "Returns image"
	case strings.Contains(ct, "text/html"):
		body := bytes.ToLower(resp.Body)
		switch {
		case bytes.Contains(body, []byte("graphql")):
			ep.APIType = GraphQL
			ep.Description = "GraphQL endpoint"
		case bytes.Contains(body, []byte("swagger")), bytes.Contains(body, []byte("openapi")):
			ep.Description = "API documentation"
		default:
			ep.Description = "Returns HTML"
		}
	default:
		ep.Description = fmt.Sprintf("Status: %d", resp.StatusCode)
	}

	return ep
}

// ClassifyHits classifies every hit in order.
func ClassifyHits(hits []Hit) []Endpoint {
	endpoints := make([]Endpoint, 0, len(hits))
	for _, h := range hits {
		endpoints = append(endpoints, Classify(h.Probe.Path, h.Response))
	}
	return endpoints
}

func describeJSON(body []byte) string {
	if !gjson.ValidBytes(body) {
		return "Returns JSON"
	}

	result := gjson.ParseBytes(body)
	switch {
	case result.IsArray():
		return fmt.Sprintf("Returns array (%d items)", len(result.Array()))
	case result.IsObject():
		var keys []string
		result.ForEach(func(key, _ gjson.Result) bool {
			keys = append(keys, key.String())
			return len(keys) < maxDescribedKeys
		})
		if len(keys) == 0 {
			return "Returns JSON object"
		}
		return fmt.Sprintf("Returns JSON (%s...)", strings.Join(keys, ", "))
	default:
		return "Returns JSON"
	}
}
