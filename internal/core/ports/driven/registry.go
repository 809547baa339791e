package driven

import (
	"context"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

// NormaliserRegistry picks the extractor for a raw document. The file kind
// is resolved once, from the declared MIME type or else the extension.
type NormaliserRegistry interface {
	// Normalise runs the extractor for the resolved kind. A kind with no
	// extractor yields an empty result carrying a warning, not an error.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register installs normaliser for its kind, replacing any earlier one.
	Register(normaliser Normaliser)

	// SupportedMIMETypes lists every MIME type some extractor accepts.
	SupportedMIMETypes() []string
}
