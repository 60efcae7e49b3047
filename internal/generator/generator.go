// Package generator talks to the model that writes story nodes and paints
// their illustrations.
package generator

import (
	"context"
)

// Generator produces raw content. Callers validate and post-process the
// output; a Generator only moves bytes.
type Generator interface {
	// GenerateNode returns the JSON text of one story node for the given
	// turn context.
	GenerateNode(ctx context.Context, turnContext string) ([]byte, error)

	// GenerateImage returns encoded image bytes (any format the image
	// post-processor can decode) for prompt.
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}
