package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ezclaim/internal/auth"
	"ezclaim/internal/claims/models"
	photos "ezclaim/internal/photos/models"
	"ezclaim/internal/platform/metrics"
	"ezclaim/internal/storage"
	tags "ezclaim/internal/tags/models"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/sentinel"
	platformstrings "ezclaim/pkg/platform/strings"
	"ezclaim/pkg/requestcontext"
	"ezclaim/pkg/secrets"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	DefaultCurrency = "CHF"
)

var tracer = otel.Tracer("ezclaim/internal/claims/service")

// PasswordLockout throttles wrong claim passwords.
type PasswordLockout interface {
	Check(ctx context.Context, claimID string) error
	RecordFailure(ctx context.Context, claimID string)
	Clear(ctx context.Context, claimID string)
}

// Service owns the claim lifecycle. Photos and tags are read through their
// collections to validate and resolve references; they are never written.
type Service struct {
	claims          storage.Collection[models.Claim]
	photos          storage.Collection[photos.Photo]
	tags            storage.Collection[tags.Tag]
	lockout         PasswordLockout
	defaultCurrency string
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLockout enables wrong-password throttling.
func WithLockout(l PasswordLockout) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

// WithDefaultCurrency sets the currency used when a request names none.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.defaultCurrency = code
		}
	}
}

// New constructs a Service.
func New(
	claims storage.Collection[models.Claim],
	photoStore storage.Collection[photos.Photo],
	tagStore storage.Collection[tags.Tag],
	opts ...Option,
) *Service {
	s := &Service{
		claims:          claims,
		photos:          photoStore,
		tags:            tagStore,
		defaultCurrency: DefaultCurrency,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindAll returns every claim. Callers enforce read authorization.
func (s *Service) FindAll(ctx context.Context) (_ []*models.Claim, err error) {
	ctx, span := tracer.Start(ctx, "claims.FindAll")
	defer func() { finish(span, err) }()

	all, err := s.claims.FindAll(ctx)
	if err != nil {
		return nil, translate(err, "failed to list claims")
	}
	out := make([]*models.Claim, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

// Search returns one page of resolved claims, newest first.
func (s *Service) Search(ctx context.Context, filter models.Filter, page, size int) (_ *models.Page, err error) {
	ctx, span := tracer.Start(ctx, "claims.Search", trace.WithAttributes(
		attribute.String("claim.status", string(filter.Status)),
		attribute.Int("page", page),
	))
	defer func() { finish(span, err) }()

	if page < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "page must not be negative")
	}
	switch {
	case size == 0:
		size = DefaultPageSize
	case size < 0 || size > MaxPageSize:
		return nil, dErrors.Newf(dErrors.CodeValidation, "size must be between 1 and %d", MaxPageSize)
	}

	q := storage.Query{
		Sort: []storage.Sort{{Field: "createdAt", Desc: true, Time: true}, {Field: "id"}},
		Page: page,
		Size: size,
	}
	if _, ok := q.Offset(); !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "page is out of range")
	}
	if filter.Status != "" {
		q.Where = map[string]string{"status": string(filter.Status)}
	}
	res, err := s.claims.Query(ctx, q)
	if err != nil {
		return nil, translate(err, "failed to search claims")
	}
	claims := make([]*models.Claim, len(res.Items))
	for i := range res.Items {
		claims[i] = &res.Items[i]
	}
	views, err := s.ResolveAll(ctx, claims)
	if err != nil {
		return nil, err
	}
	return &models.Page{Items: views, Total: res.Total, Page: page, Size: size}, nil
}

// FindByID loads a claim without any access check.
func (s *Service) FindByID(ctx context.Context, id string) (_ *models.Claim, err error) {
	ctx, span := tracer.Start(ctx, "claims.FindByID", trace.WithAttributes(attribute.String("claim.id", id)))
	defer func() { finish(span, err) }()

	return s.load(ctx, id)
}

// Get returns a resolved claim. Claim readers and writers always pass; other
// callers must supply the password of a protected claim.
func (s *Service) Get(ctx context.Context, id string, caller auth.Caller) (_ *models.ClaimView, err error) {
	ctx, span := tracer.Start(ctx, "claims.Get", trace.WithAttributes(attribute.String("claim.id", id)))
	defer func() { finish(span, err) }()

	claim, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.HasAnyScope(auth.ScopeClaimRead, auth.ScopeClaimWrite) && claim.HasPassword() {
		ok, err := s.passwordOK(ctx, claim, caller.Password)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, dErrors.New(dErrors.CodeForbidden, "password required or invalid")
		}
	}
	return s.Resolve(ctx, claim)
}

// Create validates references, hashes the password and stores a new claim.
// Unknown photo ids are reported before unknown tag ids.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (_ *models.ClaimView, err error) {
	ctx, span := tracer.Start(ctx, "claims.Create", trace.WithAttributes(
		attribute.Int("claim.photos", len(req.PhotoIDs)),
		attribute.Int("claim.tags", len(req.TagIDs)),
	))
	defer func() { finish(span, err) }()

	ph, tg, err := s.lookupReferences(ctx, req.PhotoIDs, req.TagIDs)
	if err != nil {
		return nil, err
	}
	if err := ensureAllFound("photo", req.PhotoIDs, ph, photos.Photo.EntityID); err != nil {
		return nil, err
	}
	if err := ensureAllFound("tag", req.TagIDs, tg, tags.Tag.EntityID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StatusSubmitted
	}
	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	var hash string
	if strings.TrimSpace(req.Password) != "" {
		if hash, err = secrets.Hash(req.Password); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash claim password")
		}
	}

	now := requestcontext.Now(ctx).UTC()
	claim := models.Claim{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
		Amount:       req.Amount,
		Currency:     currency,
		Payout:       req.Payout,
		Recipient:    req.Recipient,
		ExpenseAt:    req.ExpenseAt,
		PasswordHash: hash,
		PhotoIDs:     nonNil(req.PhotoIDs),
		TagIDs:       nonNil(req.TagIDs),
	}
	if err := s.claims.Save(ctx, claim); err != nil {
		return nil, translate(err, "failed to save claim")
	}
	s.metrics.IncClaimsCreated()
	s.logger.InfoContext(ctx, "claim created",
		"claim_id", claim.ID,
		"status", claim.Status,
		"protected", claim.HasPassword(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return models.NewView(&claim, ph, tg), nil
}

// Patch applies a partial update. Callers without the claim write scope must
// present the password of a protected claim first. A status change must be
// legal for the caller's class; any other field requires the claim write
// scope. Any failure aborts the whole patch.
func (s *Service) Patch(ctx context.Context, id string, req *models.PatchRequest, caller auth.Caller) (_ *models.ClaimView, err error) {
	ctx, span := tracer.Start(ctx, "claims.Patch", trace.WithAttributes(attribute.String("claim.id", id)))
	defer func() { finish(span, err) }()

	claim, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	privileged := caller.HasScope(auth.ScopeClaimWrite)
	class := models.Privileged
	if !privileged {
		// A protected claim is never touched or returned without its password,
		// whatever the patch carries.
		if claim.HasPassword() {
			ok, err := s.passwordOK(ctx, claim, req.Password)
			if err != nil {
				return nil, err
			}
			if !ok {
				s.metrics.IncDeniedPatches()
				return nil, dErrors.New(dErrors.CodeForbidden, "password required or invalid")
			}
		}
		class = models.AnonymousWithValidPassword
	}
	span.SetAttributes(attribute.String("caller.class", class.String()))

	from := claim.Status
	if req.Status != nil {
		if !models.IsTransitionAllowed(from, *req.Status, class) {
			s.metrics.IncDeniedPatches()
			s.logger.InfoContext(ctx, "claim transition refused",
				"claim_id", id,
				"from", from,
				"to", *req.Status,
				"caller", class.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, dErrors.New(dErrors.CodeForbidden, "status transition not allowed")
		}
		claim.Status = *req.Status
	}
	if req.ChangesFields() {
		if !privileged {
			s.metrics.IncDeniedPatches()
			return nil, dErrors.New(dErrors.CodeForbidden, "field update not allowed")
		}
		applyFields(claim, req)
	}

	claim.UpdatedAt = requestcontext.Now(ctx).UTC()
	if err := s.claims.Save(ctx, *claim); err != nil {
		return nil, translate(err, "failed to save claim")
	}
	if claim.Status != from {
		s.metrics.IncTransition(string(from), string(claim.Status), class.String())
		s.logger.InfoContext(ctx, "claim transitioned",
			"claim_id", id,
			"from", from,
			"to", claim.Status,
			"caller", class.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return s.Resolve(ctx, claim)
}

// Delete removes a claim. Referenced photos and tags are left alone.
func (s *Service) Delete(ctx context.Context, id string, caller auth.Caller) (err error) {
	ctx, span := tracer.Start(ctx, "claims.Delete", trace.WithAttributes(attribute.String("claim.id", id)))
	defer func() { finish(span, err) }()

	if !caller.HasScope(auth.ScopeClaimWrite) {
		return dErrors.New(dErrors.CodeForbidden, "claim deletion requires write access")
	}
	if err := s.claims.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "Claim not found: %s", id)
		}
		return translate(err, "failed to delete claim")
	}
	s.logger.InfoContext(ctx, "claim deleted",
		"claim_id", id,
		"subject", caller.Subject,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Resolve loads the photos and tags a claim references. Stale ids are
// skipped.
func (s *Service) Resolve(ctx context.Context, claim *models.Claim) (*models.ClaimView, error) {
	views, err := s.ResolveAll(ctx, []*models.Claim{claim})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ResolveAll is Resolve for many claims with one lookup per collection.
func (s *Service) ResolveAll(ctx context.Context, claims []*models.Claim) ([]*models.ClaimView, error) {
	var photoIDs, tagIDs []string
	for _, c := range claims {
		photoIDs = append(photoIDs, c.PhotoIDs...)
		tagIDs = append(tagIDs, c.TagIDs...)
	}
	ph, tg, err := s.lookupReferences(ctx, platformstrings.SortedUnique(photoIDs), platformstrings.SortedUnique(tagIDs))
	if err != nil {
		return nil, err
	}
	photoByID := index(ph, photos.Photo.EntityID)
	tagByID := index(tg, tags.Tag.EntityID)

	views := make([]*models.ClaimView, len(claims))
	for i, c := range claims {
		views[i] = models.NewView(c, pick(c.PhotoIDs, photoByID), pick(c.TagIDs, tagByID))
	}
	return views, nil
}

// lookupReferences fetches photos and tags concurrently. Only store
// failures are errors; missing ids are simply absent from the result.
func (s *Service) lookupReferences(ctx context.Context, photoIDs, tagIDs []string) ([]photos.Photo, []tags.Tag, error) {
	var ph []photos.Photo
	var tg []tags.Tag
	g, gctx := errgroup.WithContext(ctx)
	if len(photoIDs) > 0 {
		g.Go(func() error {
			found, err := s.photos.FindAllByID(gctx, photoIDs)
			if err != nil {
				return translate(err, "failed to load photos")
			}
			ph = found
			return nil
		})
	}
	if len(tagIDs) > 0 {
		g.Go(func() error {
			found, err := s.tags.FindAllByID(gctx, tagIDs)
			if err != nil {
				return translate(err, "failed to load tags")
			}
			tg = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ph, tg, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Claim, error) {
	claim, err := s.claims.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "Claim not found: %s", id)
		}
		return nil, translate(err, "failed to load claim")
	}
	return &claim, nil
}

// passwordOK verifies a supplied password against a protected claim. A
// locked claim fails with CodeLocked before any comparison.
func (s *Service) passwordOK(ctx context.Context, claim *models.Claim, password *string) (bool, error) {
	if password == nil || strings.TrimSpace(*password) == "" {
		return false, nil
	}
	if s.lockout != nil {
		if err := s.lockout.Check(ctx, claim.ID); err != nil {
			return false, err
		}
	}
	err := secrets.Verify(*password, claim.PasswordHash)
	switch {
	case err == nil:
		if s.lockout != nil {
			s.lockout.Clear(ctx, claim.ID)
		}
		return true, nil
	case errors.Is(err, secrets.ErrMismatch):
		s.metrics.IncPasswordFailures()
		if s.lockout != nil {
			s.lockout.RecordFailure(ctx, claim.ID)
		}
		return false, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify claim password")
	}
}

func applyFields(c *models.Claim, req *models.PatchRequest) {
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Amount != nil {
		c.Amount = *req.Amount
	}
	if req.Currency != nil {
		c.Currency = *req.Currency
	}
	if req.Payout != nil {
		c.Payout = req.Payout
	}
	if req.Recipient != nil {
		c.Recipient = *req.Recipient
	}
	if req.ExpenseAt != nil {
		c.ExpenseAt = req.ExpenseAt
	}
}

// ensureAllFound fails with every requested id that did not resolve.
func ensureAllFound[T any](kind string, requested []string, found []T, id func(T) string) error {
	have := make(map[string]struct{}, len(found))
	for _, f := range found {
		have[id(f)] = struct{}{}
	}
	var missing []string
	for _, r := range requested {
		if _, ok := have[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return dErrors.Newf(dErrors.CodeNotFound, "Unknown %s id(s): %s", kind, strings.Join(missing, ","))
}

func index[T any](items []T, id func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[id(item)] = item
	}
	return out
}

func pick[T any](ids []string, byID map[string]T) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "claim store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func finish(span trace.Span, err error) {
	if err != nil && dErrors.CodeOf(err) != dErrors.CodeNotFound {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
