// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
)

// GeneratedImage identifies one image produced by a generation backend.
// Both fields are owned by the backend; the loop treats them as opaque
// handles consumed within the iteration that produced them.
type GeneratedImage struct {
	// ID uniquely identifies the image in the backend's namespace.
	ID string

	// Path locates the image for the description backend. Depending on
	// the adapter this is a URL or a local file path.
	Path string
}

// GenerationPort is the boundary to the external image-generation
// service. Implementations must be safe to call repeatedly with
// different prompts; failure is signaled by returning an error, which
// the consistency loop treats as a run abort.
type GenerationPort interface {
	// Generate renders an image from the prompt. The parameters map
	// carries backend-specific options such as size or quality and may
	// be nil. Implementations should respect context cancellation.
	Generate(ctx context.Context, prompt string, parameters map[string]any) (GeneratedImage, error)
}

// DescriptionPort is the boundary to the external vision-description
// service. When focusOnEmbodiment is true, the description should
// concentrate on the agent's visual embodiment (appearance, clothing,
// features) rather than scene composition.
type DescriptionPort interface {
	Describe(ctx context.Context, imagePath string, focusOnEmbodiment bool) (string, error)
}
