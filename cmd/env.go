package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pmprep/interview-cli/internal/assemble"
	"github.com/pmprep/interview-cli/internal/extract"
	"github.com/pmprep/interview-cli/internal/gateway"
	"github.com/pmprep/interview-cli/internal/source"
	"github.com/pmprep/interview-cli/internal/store"
)

// pipelineEnv holds the initialized store, gateway, and pipeline stages
// shared by the sync/extract/assemble/serve commands.
type pipelineEnv struct {
	Store     store.Store
	Gateway   gateway.Gateway
	Extractor *extract.Extractor
	Assembler *assemble.Assembler
	Source    source.Source
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initEnv sets up the store (migrated), gateway, and pipeline stages.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	provider, key, model, baseURL, err := cfg.GatewaySettings()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	gw, err := gateway.New(gateway.Settings{
		Provider: gateway.Provider(provider),
		APIKey:   key,
		Model:    model,
		BaseURL:  baseURL,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ex := extract.New(gw, extract.Options{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		MaxTokens:   cfg.Pipeline.MaxTokens,
	})
	asm := assemble.New(gw, st, assemble.Options{
		MaxQuestions: cfg.Pipeline.MaxQuestions,
		Pace:         cfg.Pipeline.Pace,
	})

	return &pipelineEnv{
		Store:     st,
		Gateway:   gw,
		Extractor: ex,
		Assembler: asm,
		Source:    initSource(),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	}
	return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// initSource picks the transcript source. A configured local directory
// shadows the remote catalog.
func initSource() source.Source {
	if cfg.Source.Dir != "" {
		return source.NewDir(cfg.Source.Dir)
	}
	return source.NewHTTP(source.HTTPOptions{BaseURL: cfg.Source.BaseURL})
}
