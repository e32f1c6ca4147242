package presentation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"credhub/internal/credential/models"
	"credhub/internal/presentation/metrics"
)

// AudienceClaim is the claim carrying the intended verifier for signed-token
// presentation formats.
const AudienceClaim = "aud"

// Assembler groups disclosed credentials by format and merges the generated
// presentations into one response. It is stateless and safe for concurrent use.
type Assembler struct {
	registry      *CreatorRegistry
	defaultFormat models.CredentialFormat
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// AssemblerOption configures the Assembler.
type AssemblerOption func(*Assembler)

// WithDefaultFormat enables legacy single-format mode: credentials are folded
// into one presentation of the given format whenever it can carry them.
func WithDefaultFormat(format models.CredentialFormat) AssemblerOption {
	return func(a *Assembler) {
		a.defaultFormat = format
	}
}

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithAssemblerMetrics sets the metrics collector.
func WithAssemblerMetrics(m *metrics.Metrics) AssemblerOption {
	return func(a *Assembler) {
		a.metrics = m
	}
}

// NewAssembler constructs an Assembler over the given registry.
func NewAssembler(registry *CreatorRegistry, opts ...AssemblerOption) (*Assembler, error) {
	if registry == nil {
		return nil, fmt.Errorf("creator registry is required")
	}
	a := &Assembler{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CreatePresentation produces one or more signed presentations for the given
// credentials. A supplied presentation definition is tolerated but ignored
// with a diagnostic. Generator, key, or participant failures fail the whole
// disclosure; no partial presentations are returned.
func (a *Assembler) CreatePresentation(
	ctx context.Context,
	participantContextID string,
	credentials []models.VerifiableCredentialContainer,
	presentationDefinition any,
	audience string,
) ([]models.Presentation, error) {
	if presentationDefinition != nil {
		a.logger.WarnContext(ctx, "presentation definition was supplied but is not supported, ignoring it",
			"participant_context_id", participantContextID,
		)
	}
	if len(credentials) == 0 {
		return []models.Presentation{}, nil
	}

	groups := a.partition(ctx, credentials)

	result := make([]models.Presentation, 0, len(groups))
	for _, group := range groups {
		start := time.Now()
		raw, err := a.registry.CreatePresentation(ctx, participantContextID, group.credentials, group.format, a.claimsFor(group.format, audience))
		if err != nil {
			if a.metrics != nil {
				a.metrics.GenerationFailuresTotal.WithLabelValues(group.format.String()).Inc()
			}
			return nil, err
		}
		if a.metrics != nil {
			a.metrics.ObserveGeneration(group.format.String(), time.Since(start))
		}
		result = append(result, models.Presentation{Format: group.format, Raw: raw})
	}
	return result, nil
}

type formatGroup struct {
	format      models.CredentialFormat
	credentials []models.VerifiableCredentialContainer
}

// partition groups credentials into per-presentation batches. Without a
// default format each credential format gets its own presentation. With one,
// the default format carries every credential it can embed: token envelopes
// carry everything, a linked-data presentation cannot embed token credentials,
// which then fall back to presentations in their own format.
func (a *Assembler) partition(ctx context.Context, credentials []models.VerifiableCredentialContainer) []formatGroup {
	if a.defaultFormat == "" {
		return groupByFormat(credentials)
	}

	if a.defaultFormat.IsTokenBased() {
		return []formatGroup{{format: a.defaultFormat, credentials: credentials}}
	}

	var fitting []models.VerifiableCredentialContainer
	var rest []models.VerifiableCredentialContainer
	for _, cred := range credentials {
		if cred.Format.IsTokenBased() {
			rest = append(rest, cred)
		} else {
			fitting = append(fitting, cred)
		}
	}

	var groups []formatGroup
	if len(fitting) > 0 {
		groups = append(groups, formatGroup{format: a.defaultFormat, credentials: fitting})
	}
	if len(rest) > 0 {
		a.logger.InfoContext(ctx, "default presentation format cannot embed signed-token credentials, generating additional presentations",
			"default_format", a.defaultFormat.String(),
			"count", len(rest),
		)
		if a.metrics != nil {
			a.metrics.FormatSplitsTotal.Inc()
		}
		groups = append(groups, groupByFormat(rest)...)
	}
	return groups
}

// groupByFormat partitions credentials by format tag, preserving the relative
// order within each partition and the order of first appearance across groups.
func groupByFormat(credentials []models.VerifiableCredentialContainer) []formatGroup {
	index := make(map[models.CredentialFormat]int)
	var groups []formatGroup
	for _, cred := range credentials {
		i, ok := index[cred.Format]
		if !ok {
			i = len(groups)
			index[cred.Format] = i
			groups = append(groups, formatGroup{format: cred.Format})
		}
		groups[i].credentials = append(groups[i].credentials, cred)
	}
	return groups
}

// claimsFor builds the per-format additional claims. The audience claim only
// applies to signed-token envelopes.
func (a *Assembler) claimsFor(format models.CredentialFormat, audience string) map[string]any {
	if audience == "" || !format.IsTokenBased() {
		return nil
	}
	return map[string]any{AudienceClaim: audience}
}
