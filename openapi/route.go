package openapi

import (
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type Operation struct {
	doc       *Document
	method    string
	path      string
	operation *openapi3.Operation
}

func (o *Operation) extractPathParams() {
	for _, part := range strings.Split(o.path, "/") {
		name, ok := strings.CutPrefix(part, ":")
		if !ok || name == "" {
			continue
		}
		o.operation.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}
}

func (o *Operation) Summary(summary string) *Operation {
	o.operation.Summary = summary
	return o
}

func (o *Operation) Tags(tags ...string) *Operation {
	o.operation.Tags = append(o.operation.Tags, tags...)
	return o
}

func (o *Operation) Header(name, description string, required bool) *Operation {
	param := openapi3.NewHeaderParameter(name).WithSchema(openapi3.NewStringSchema())
	param.Description = description
	param.Required = required
	o.operation.AddParameter(param)
	return o
}

func (o *Operation) Body(example any, description string) *Operation {
	body := openapi3.NewRequestBody().
		WithDescription(description).
		WithRequired(true).
		WithJSONSchemaRef(o.doc.schemaFor(example))
	o.operation.RequestBody = &openapi3.RequestBodyRef{Value: body}
	return o
}

func (o *Operation) Response(status int, example any, description string) *Operation {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.Content = openapi3.NewContentWithJSONSchemaRef(o.doc.schemaFor(example))
	}
	o.operation.AddResponse(status, resp)
	return o
}

// ResponseHeader documents a header on an already added response.
func (o *Operation) ResponseHeader(status int, name, description string) *Operation {
	resp := o.operation.Responses.Value(strconv.Itoa(status))
	if resp == nil || resp.Value == nil {
		return o
	}
	if resp.Value.Headers == nil {
		resp.Value.Headers = make(openapi3.Headers)
	}
	resp.Value.Headers[name] = &openapi3.HeaderRef{Value: &openapi3.Header{Parameter: openapi3.Parameter{
		Description: description,
		Schema:      &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
	}}}
	return o
}

// Secured marks the operation as requiring a bearer access token.
func (o *Operation) Secured(secured bool) *Operation {
	reqs := openapi3.NewSecurityRequirements()
	if secured {
		reqs.With(openapi3.NewSecurityRequirement().Authenticate(BearerScheme))
	}
	o.operation.Security = reqs
	return o
}

func (o *Operation) Build() {
	o.doc.addOperation(o.method, o.path, o.operation)
}
