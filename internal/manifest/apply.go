package manifest

import (
	"context"
	"errors"
	"log/slog"

	"s3encrypt/internal/types"
)

// Fetcher is the part of fetcher.SecretFetcher used by Apply.
type Fetcher interface {
	FetchToFile(ctx context.Context, ref types.EncryptedObjectRef, localPath string) error
	FetchAsStructured(ctx context.Context, ref types.EncryptedObjectRef) (types.SecretMap, error)
	Remove(ctx context.Context, localPath string) error
}

// FetcherFactory builds a Fetcher whose clients are bound to region. Apply
// calls it once per region, so every resource of a region shares the same
// clients (and the same circuit breaker).
type FetcherFactory func(ctx context.Context, region string) (Fetcher, error)

// Outcome records what was done for one resource.
type Outcome struct {
	Name   string
	Action Action
	Object string
	// Path is set for downloaded resources.
	Path string
	// Secrets is set for decrypted resources.
	Secrets types.SecretMap
}

type download struct {
	fetcher Fetcher
	path    string
}

// Apply processes the resources in order. It stops at the first failure
// unless the manifest sets keep_going, in which case every resource is tried
// and all failures are reported together.
//
// consume (if not nil) runs only when every resource succeeded. Downloaded
// files are removed before Apply returns in every case, and a removal failure
// is reported alongside any earlier error. On failure no outcomes are
// returned.
func Apply(ctx context.Context, m *Manifest, factory FetcherFactory, consume func([]Outcome) error, logger *slog.Logger) ([]Outcome, error) {
	var (
		fetchers  = make(map[string]Fetcher)
		downloads []download
		outcomes  []Outcome
		failures  []error
	)

	for _, r := range m.Resources {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		outcome, f, err := applyResource(ctx, m.Defaults, r, fetchers, factory)
		if err != nil {
			logger.ErrorContext(ctx, "manifest resource failed",
				"resource", r.Name,
				"error_code", types.CodeOf(err),
				"keep_going", m.KeepGoing,
			)
			failures = append(failures, err)
			if !m.KeepGoing {
				break
			}
			continue
		}
		if outcome.Path != "" {
			downloads = append(downloads, download{fetcher: f, path: outcome.Path})
		}

		logger.InfoContext(ctx, "manifest resource applied",
			"resource", r.Name,
			"action", string(r.Action),
			"object", outcome.Object,
			"secrets", outcome.Secrets,
		)
		outcomes = append(outcomes, outcome)
	}

	if len(failures) == 0 && consume != nil {
		if err := consume(outcomes); err != nil {
			failures = append(failures, err)
		}
	}

	for _, d := range downloads {
		if err := d.fetcher.Remove(ctx, d.path); err != nil {
			failures = append(failures, err)
		}
	}

	switch len(failures) {
	case 0:
		return outcomes, nil
	case 1:
		return nil, failures[0]
	default:
		return nil, errors.Join(failures...)
	}
}

func applyResource(ctx context.Context, d Defaults, r Resource, fetchers map[string]Fetcher, factory FetcherFactory) (Outcome, Fetcher, error) {
	ref := r.Ref(d)
	f, ok := fetchers[ref.Region]
	if !ok {
		var err error
		f, err = factory(ctx, ref.Region)
		if err != nil {
			return Outcome{}, nil, err
		}
		fetchers[ref.Region] = f
	}

	outcome := Outcome{Name: r.Name, Action: r.Action, Object: ref.String()}
	switch r.Action {
	case ActionDownload:
		if err := f.FetchToFile(ctx, ref, r.Path); err != nil {
			return Outcome{}, nil, err
		}
		outcome.Path = r.Path
	case ActionDecrypt:
		secrets, err := f.FetchAsStructured(ctx, ref)
		if err != nil {
			return Outcome{}, nil, err
		}
		outcome.Secrets = secrets
	default:
		return Outcome{}, nil, invalid("unknown action "+string(r.Action), nil)
	}
	return outcome, f, nil
}
