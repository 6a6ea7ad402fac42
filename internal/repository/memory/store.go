// Package memory implements the repository interfaces in process memory. It
// backs the service when no database is configured, and the test suites.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
)

// Store holds every table behind one lock so joins stay consistent.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	tickets     map[string]domain.Ticket
	messages    map[string][]domain.TicketMessage
	history     map[string][]domain.TicketHistory
	articles    map[string]domain.KnowledgeArticle
	suggestions map[string]domain.Suggestion
	members     map[string]domain.Member
	states      map[string]domain.AnalysisState
	settings    map[string]domain.OrgSettings
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:         func() time.Time { return time.Now().UTC() },
		tickets:     make(map[string]domain.Ticket),
		messages:    make(map[string][]domain.TicketMessage),
		history:     make(map[string][]domain.TicketHistory),
		articles:    make(map[string]domain.KnowledgeArticle),
		suggestions: make(map[string]domain.Suggestion),
		members:     make(map[string]domain.Member),
		states:      make(map[string]domain.AnalysisState),
		settings:    make(map[string]domain.OrgSettings),
	}
}

// Repositories bundles the store's views.
type Repositories struct {
	Tickets     repository.TicketRepository
	Messages    repository.TicketMessageRepository
	History     repository.TicketHistoryRepository
	Knowledge   repository.KnowledgeRepository
	Suggestions repository.SuggestionRepository
	Members     repository.MemberRepository
	Analysis    repository.AnalysisStateRepository
	Settings    repository.OrgSettingsRepository
}

// Repositories returns every repository backed by s.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Tickets:     (*ticketRepo)(s),
		Messages:    (*messageRepo)(s),
		History:     (*historyRepo)(s),
		Knowledge:   (*knowledgeRepo)(s),
		Suggestions: (*suggestionRepo)(s),
		Members:     (*memberRepo)(s),
		Analysis:    (*analysisRepo)(s),
		Settings:    (*settingsRepo)(s),
	}
}

func newID() string {
	return uuid.NewString()
}

var errNotFound = pgx.ErrNoRows

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.Guided != nil {
		g := *t.Guided
		g.Candidates = cloneStrings(g.Candidates)
		g.Options = append([]domain.DialogOption(nil), g.Options...)
		if g.Context != nil {
			ctx := make(map[string]string, len(g.Context))
			for k, v := range g.Context {
				ctx[k] = v
			}
			g.Context = ctx
		}
		t.Guided = &g
	}
	return t
}

func page[T any](items []T, limit, offset, defaultLimit int) []T {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func sortByUpdatedDesc(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].UpdatedAt.After(tickets[j].UpdatedAt)
	})
}
