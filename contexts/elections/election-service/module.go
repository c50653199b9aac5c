package electionservice

import (
	"log/slog"
	"time"

	httpadapter "ballot/contexts/elections/election-service/adapters/http"
	"ballot/contexts/elections/election-service/adapters/memory"
	"ballot/contexts/elections/election-service/application/commands"
	"ballot/contexts/elections/election-service/application/queries"
	"ballot/contexts/elections/election-service/application/workers"
	"ballot/contexts/elections/election-service/domain/services"
	"ballot/contexts/elections/election-service/ports"
)

// Module is the composition surface of the election service.
// Runtime wiring should consume Handler; Store is set only by
// NewInMemoryModule and is exposed for tests.
type Module struct {
	Handler   httpadapter.Handler
	AdminAuth commands.AdminAuthUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Elections  ports.ElectionRepository
	Candidates ports.CandidateRepository
	Tokens     ports.TokenRepository
	Sessions   ports.SessionRepository
	Votes      ports.VoteRepository
	Results    ports.ResultRepository
	Admins     ports.AdminRepository
	Outbox     ports.OutboxWriter
	Hasher     ports.PasswordHasher
	Secrets    ports.SecretGenerator
	Clock      ports.Clock
	IDGen      ports.IDGenerator

	VoterSessionTTL time.Duration
	AdminSessionTTL time.Duration
	TokenBatchMax   int
	Logger          *slog.Logger
}

// NewModule wires the election use cases against explicit ports.
func NewModule(deps Dependencies) Module {
	secrets := deps.Secrets
	if secrets == nil {
		secrets = services.CodeGenerator{}
	}
	adminAuth := commands.AdminAuthUseCase{
		Admins:     deps.Admins,
		Hasher:     deps.Hasher,
		Secrets:    secrets,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		SessionTTL: deps.AdminSessionTTL,
		Logger:     deps.Logger,
	}
	handler := httpadapter.Handler{
		Elections: commands.ElectionUseCase{
			Elections: deps.Elections,
			Outbox:    deps.Outbox,
			Clock:     deps.Clock,
			IDGen:     deps.IDGen,
			Logger:    deps.Logger,
		},
		Candidates: commands.CandidateUseCase{
			Elections:  deps.Elections,
			Candidates: deps.Candidates,
			Clock:      deps.Clock,
			IDGen:      deps.IDGen,
			Logger:     deps.Logger,
		},
		Tokens: commands.TokenUseCase{
			Elections: deps.Elections,
			Tokens:    deps.Tokens,
			Secrets:   secrets,
			Outbox:    deps.Outbox,
			Clock:     deps.Clock,
			IDGen:     deps.IDGen,
			MaxBatch:  deps.TokenBatchMax,
			Logger:    deps.Logger,
		},
		Sessions: commands.SessionUseCase{
			Elections:  deps.Elections,
			Tokens:     deps.Tokens,
			Sessions:   deps.Sessions,
			Secrets:    secrets,
			Clock:      deps.Clock,
			IDGen:      deps.IDGen,
			SessionTTL: deps.VoterSessionTTL,
			Logger:     deps.Logger,
		},
		Votes: commands.VoteUseCase{
			Elections:  deps.Elections,
			Candidates: deps.Candidates,
			Sessions:   deps.Sessions,
			Votes:      deps.Votes,
			Clock:      deps.Clock,
			IDGen:      deps.IDGen,
			Logger:     deps.Logger,
		},
		AdminAuth: adminAuth,
		ElectionReads: queries.ElectionQueries{
			Elections:  deps.Elections,
			Candidates: deps.Candidates,
		},
		TokenReads: queries.TokenQueries{
			Elections: deps.Elections,
			Tokens:    deps.Tokens,
		},
		Results: queries.ResultQueries{
			Elections:  deps.Elections,
			Candidates: deps.Candidates,
			Results:    deps.Results,
			Logger:     deps.Logger,
		},
		Logger: deps.Logger,
	}
	return Module{Handler: handler, AdminAuth: adminAuth}
}

// Workers are the background jobs of the election service.
type Workers struct {
	Closer    workers.ElectionCloser
	Integrity workers.IntegrityChecker
	Relay     workers.OutboxRelay
	Audit     workers.AuditConsumer
}

type WorkerDependencies struct {
	Elections       ports.ElectionRepository
	Sessions        ports.SessionRepository
	Admins          ports.AdminRepository
	Results         ports.ResultRepository
	Outbox          ports.OutboxWriter
	PendingOutbox   ports.OutboxRepository
	Dedup           ports.EventDedupStore
	Publisher       ports.EventPublisher
	Subscriber      ports.EventSubscriber
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	OutboxBatchSize int
	AuditDisabled   bool
	Logger          *slog.Logger
}

func NewWorkers(deps WorkerDependencies) Workers {
	return Workers{
		Closer: workers.ElectionCloser{
			Elections: deps.Elections,
			Sessions:  deps.Sessions,
			Admins:    deps.Admins,
			Outbox:    deps.Outbox,
			Clock:     deps.Clock,
			IDGen:     deps.IDGen,
			Logger:    deps.Logger,
		},
		Integrity: workers.IntegrityChecker{
			Results: deps.Results,
			Logger:  deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.PendingOutbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.OutboxBatchSize,
			Logger:    deps.Logger,
		},
		Audit: workers.AuditConsumer{
			Subscriber: deps.Subscriber,
			Dedup:      deps.Dedup,
			Clock:      deps.Clock,
			Disabled:   deps.AuditDisabled,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule wires the use cases against the in-memory store.
func NewInMemoryModule(hasher ports.PasswordHasher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Elections:  store,
		Candidates: store,
		Tokens:     store,
		Sessions:   store,
		Votes:      store,
		Results:    store,
		Admins:     store,
		Outbox:     store,
		Hasher:     hasher,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
