package httpcore

import "github.com/cryguy/webruntime/internal/headers"

// ResponseType is the Response type enum.
type ResponseType string

const (
	ResponseBasic          ResponseType = "basic"
	ResponseCORS           ResponseType = "cors"
	ResponseDefault        ResponseType = "default"
	ResponseError          ResponseType = "error"
	ResponseOpaque         ResponseType = "opaque"
	ResponseOpaqueRedirect ResponseType = "opaqueredirect"
)

// InnerResponse is the Response record.
type InnerResponse struct {
	Status        int
	StatusMessage string
	Headers       *headers.Headers
	Body          *ExtractedBody
	Type          ResponseType
	URL           string
}

// NewNetworkErrorResponse builds the canonical network-error response
// (status 0, type "error") that the fetch algorithm maps to a TypeError
// at the caller.
func NewNetworkErrorResponse() *InnerResponse {
	return &InnerResponse{Type: ResponseError, Headers: headers.New(headers.GuardImmutable)}
}

// Ok reports whether status is in the 2xx range.
func (r *InnerResponse) Ok() bool {
	return r.Status >= 200 && r.Status < 300
}
