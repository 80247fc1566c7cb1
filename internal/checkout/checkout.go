package checkout

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"event-checkout-platform/internal/models"
)

// OrderCreator places orders with the ticketing backend
type OrderCreator interface {
	CreateOrder(ctx context.Context, idempotencyKey string, payload *models.SubmissionPayload) (models.SubmissionResult, error)
}

// Catalog is the read-only event data a checkout works against
type Catalog struct {
	Event    models.Event
	Products []models.Product
	Fields   []models.FormField
}

// SubmitGuard makes submission non-reentrant per checkout
type SubmitGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSubmitGuard creates an empty guard
func NewSubmitGuard() *SubmitGuard {
	return &SubmitGuard{inFlight: make(map[string]struct{})}
}

// TryAcquire marks key as submitting. It returns false when a submission for
// key is already in flight.
func (g *SubmitGuard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return false
	}
	g.inFlight[key] = struct{}{}
	return true
}

// Release ends the submission for key
func (g *SubmitGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}

// Service holds the collaborators shared by every checkout
type Service struct {
	reconciler *Reconciler
	creator    OrderCreator
	guard      *SubmitGuard
	newKey     func() string
}

// NewService creates a checkout service
func NewService(reconciler *Reconciler, creator OrderCreator) *Service {
	return &Service{
		reconciler: reconciler,
		creator:    creator,
		guard:      NewSubmitGuard(),
		newKey:     func() string { return uuid.New().String() },
	}
}

// Open loads the draft for the catalog's event and reconciles its attendee
// slots against the current products. guardKey identifies the buyer's
// checkout for the submit guard.
func (s *Service) Open(store *DraftStore, catalog *Catalog, guardKey string) (*Session, error) {
	draft := store.Load(catalog.Event.OrgSlug, catalog.Event.Slug)

	session := &Session{
		svc:      s,
		store:    store,
		catalog:  catalog,
		guardKey: guardKey,
		draft:    draft,
	}

	if ReconcileAttendees(draft, catalog.Products) {
		draft.AcceptedTerms = false
		draft.SubmissionKey = ""
		if err := store.Save(draft); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// Session is one buyer's checkout for one event
type Session struct {
	svc      *Service
	store    *DraftStore
	catalog  *Catalog
	guardKey string
	draft    *models.CheckoutDraft
}

// Draft returns the working draft
func (s *Session) Draft() *models.CheckoutDraft {
	return s.draft
}

// Catalog returns the event data the session works against
func (s *Session) Catalog() *Catalog {
	return s.catalog
}

// Slots lists the attendee slots with their bound product
func (s *Session) Slots() []Slot {
	return Slots(s.draft)
}

// MissingFields reports unanswered required fields per slot
func (s *Session) MissingFields() map[int][]string {
	return MissingFields(s.draft.Attendees, s.catalog.Fields)
}

// CanProceedToPayment reports whether the gate to the payment step is open
func (s *Session) CanProceedToPayment() bool {
	return !s.draft.IsEmpty() && AllAttendeesValid(s.draft.Attendees, s.catalog.Fields)
}

// SetQuantity applies a quantity change and reconciles the attendee slots
func (s *Session) SetQuantity(productID string, quantity int) error {
	draft := s.draft.Clone()
	changed, err := s.svc.reconciler.SetQuantity(draft, s.catalog.Products, productID, quantity)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	ReconcileAttendees(draft, s.catalog.Products)
	draft.SubmissionKey = ""
	return s.commit(draft)
}

// SetAnswers merges answers into one attendee slot
func (s *Session) SetAnswers(index int, answers map[string]any) error {
	draft := s.draft.Clone()
	if err := SetAnswers(draft, index, answers); err != nil {
		return err
	}
	draft.SubmissionKey = ""
	return s.commit(draft)
}

// AcceptTerms records terms acceptance
func (s *Session) AcceptTerms() error {
	draft := s.draft.Clone()
	if err := AcceptTerms(draft, s.catalog.Fields); err != nil {
		return err
	}
	return s.commit(draft)
}

// commit persists draft and only then makes it the working draft, so a failed
// save leaves the session as it was.
func (s *Session) commit(draft *models.CheckoutDraft) error {
	if err := s.store.Save(draft); err != nil {
		return err
	}
	s.draft = draft
	return nil
}

// Cancel discards the draft
func (s *Session) Cancel() error {
	if err := s.store.Clear(s.draft.OrgSlug, s.draft.EventSlug); err != nil {
		return err
	}
	s.draft = models.NewCheckoutDraft(s.draft.OrgSlug, s.draft.EventSlug)
	return nil
}

// Submit places the order. Local checks run before any remote call. A result
// that arrives after ctx is done is discarded and ErrSubmissionAbandoned is
// returned; the draft is then left as it was.
func (s *Session) Submit(ctx context.Context, buyer models.Buyer, antiAbuseToken string) (Outcome, error) {
	if !s.svc.guard.TryAcquire(s.guardKey) {
		return nil, models.ErrSubmissionInFlight
	}
	defer s.svc.guard.Release(s.guardKey)

	payload, err := BuildPayload(s.catalog.Event.ID, s.draft, s.catalog.Products, s.catalog.Fields, buyer, antiAbuseToken)
	if err != nil {
		return nil, err
	}
	if !AllAttendeesValid(s.draft.Attendees, s.catalog.Fields) {
		return nil, models.ErrAttendeesIncomplete
	}
	if !s.draft.AcceptedTerms {
		return nil, models.ErrTermsNotAccepted
	}
	if err := payload.Buyer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	key, err := s.submissionKey()
	if err != nil {
		return nil, err
	}
	result, err := s.svc.creator.CreateOrder(ctx, key, payload)
	if ctx.Err() != nil {
		log.Printf("Discarding order result for %s: %v", DraftKey(s.draft.OrgSlug, s.draft.EventSlug), ctx.Err())
		return nil, models.ErrSubmissionAbandoned
	}
	if err != nil {
		log.Printf("Order creation failed for event %s: %v", s.catalog.Event.ID, err)
		result = models.ClassifyError(err)
	}

	outcome := NewFinalizer(s.store).Finalize(s.draft.OrgSlug, s.draft.EventSlug, result)
	MatchOutcome(outcome,
		func(ShowConfirmation) struct{} {
			s.draft = models.NewCheckoutDraft(s.draft.OrgSlug, s.draft.EventSlug)
			return struct{}{}
		},
		func(ExternalRedirect) struct{} {
			s.draft = models.NewCheckoutDraft(s.draft.OrgSlug, s.draft.EventSlug)
			return struct{}{}
		},
		func(ShowError) struct{} { return struct{}{} },
	)
	return outcome, nil
}

// submissionKey returns the draft's idempotency key, minting and persisting
// one first if needed. Retrying an unchanged draft reuses the key, so a
// request that reached the backend before failing is not placed twice.
func (s *Session) submissionKey() (string, error) {
	if s.draft.SubmissionKey != "" {
		return s.draft.SubmissionKey, nil
	}
	draft := s.draft.Clone()
	draft.SubmissionKey = s.svc.newKey()
	if err := s.commit(draft); err != nil {
		return "", err
	}
	return draft.SubmissionKey, nil
}
