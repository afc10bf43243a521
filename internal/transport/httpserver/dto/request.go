// Package dto provides Data Transfer Objects for HTTP requests and responses.
package dto

// AcquireRequest is the body for POST /api/v1/media/acquire. The URL is
// handed to the resolver as-is; scheme-less platform references are valid,
// so no url-shape validation happens here.
type AcquireRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

// RecognizeRequest is the JSON body for POST /api/v1/media/recognize when
// the request carries no sample file.
type RecognizeRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}
