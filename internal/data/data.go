package data

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

// Options selects and configures the repositories
type Options struct {
	RegistryPath  string
	Retention     int    // per group, 0 = unbounded
	MessageDBPath string // empty keeps history in memory
	OpenAI        OpenAIConfig
}

// Repositories contains all repositories
type Repositories struct {
	Groups     repo.GroupRepo
	Messages   repo.MessageStore
	Completion repo.CompletionRepo // nil when no model is configured
}

// NewRepositories creates all repositories
func NewRepositories(opts Options, log zerolog.Logger) (*Repositories, error) {
	var store repo.MessageStore
	if opts.MessageDBPath != "" {
		s, err := NewSQLStore(opts.MessageDBPath, opts.Retention, log)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = NewMemoryStore(opts.Retention)
	}

	return &Repositories{
		Groups:     NewRegistryRepo(opts.RegistryPath, log),
		Messages:   store,
		Completion: NewOpenAIRepo(opts.OpenAI),
	}, nil
}

// Close releases the repositories
func (r *Repositories) Close() error {
	var errs []error
	if r.Messages != nil {
		errs = append(errs, r.Messages.Close())
	}
	return errors.Join(errs...)
}
