package stockmove

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	appctx "mfgerp/internal/core/context"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/numerator"
	"mfgerp/internal/core/tx"
	"mfgerp/internal/domain"
	"mfgerp/pkg/logger"
)

var tracer = otel.Tracer("mfgerp/stockmove")

// NumberPrefix is used for auto-generated move numbers (MV-2026-00001).
const NumberPrefix = "MV"

// Reconciler applies a move to the order it is linked to. It runs inside
// the post transaction, before the status flip.
type Reconciler interface {
	Reconcile(ctx context.Context, move *StockMove) error
}

// CreateInput is the payload of Create.
type CreateInput struct {
	MoveNo      string
	MoveType    MoveType
	WarehouseID id.ID
	Link        Link
	MoveDate    *time.Time
	Note        string
	Lines       []LineInput
}

// LineInput is one requested line.
type LineInput struct {
	ItemID         *id.ID
	VariantID      *id.ID
	UOM            string
	Qty            string
	SrcLocationID  *id.ID
	DestLocationID *id.ID
	Note           string
}

// Service provides the stock move operations: create, post, get, list.
type Service struct {
	repo       Repository
	reconciler Reconciler
	numerator  numerator.Generator
	txManager  tx.Manager
	hooks      *domain.HookRegistry[*StockMove]
	now        func() time.Time
}

// NewService creates a new stock move service.
func NewService(repo Repository, reconciler Reconciler, gen numerator.Generator, txManager tx.Manager) *Service {
	s := &Service{
		repo:       repo,
		reconciler: reconciler,
		numerator:  gen,
		txManager:  txManager,
		hooks:      domain.NewHookRegistry[*StockMove](),
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.hooks.OnBeforeCreate(s.assignNumber)
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*StockMove] {
	return s.hooks
}

// Create validates the input and persists a DRAFT move with its lines.
func (s *Service) Create(ctx context.Context, in CreateInput) (*StockMove, error) {
	move := New(in.MoveNo, in.MoveType, in.WarehouseID, in.Link)
	move.Note = in.Note
	move.CreatedBy = appctx.GetUserID(ctx)
	if in.MoveDate != nil {
		move.MoveDate = in.MoveDate.UTC()
	}

	for i, li := range in.Lines {
		qty, err := parseQty(li.Qty, i+1)
		if err != nil {
			return nil, err
		}
		move.AddLine(Line{
			ItemID:         li.ItemID,
			VariantID:      li.VariantID,
			UOM:            li.UOM,
			Qty:            qty,
			SrcLocationID:  li.SrcLocationID,
			DestLocationID: li.DestLocationID,
			Note:           li.Note,
		})
	}

	if err := move.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, domain.BeforeCreate, move); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, move); err != nil {
			return fmt.Errorf("create stock move: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock move created",
		"id", move.ID,
		"move_no", move.MoveNo,
		"move_type", move.MoveType,
		"lines", len(move.Lines))

	return move, nil
}

// Post runs the linked reconciler and flips the move to POSTED in one
// transaction. Any failure leaves the move in DRAFT.
func (s *Service) Post(ctx context.Context, moveID id.ID) error {
	ctx, span := tracer.Start(ctx, "stockmove.Post")
	defer span.End()
	span.SetAttributes(attribute.String("move.id", moveID.String()))

	var posted *StockMove
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		move, err := s.repo.GetForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if err := move.CanPost(); err != nil {
			return err
		}

		if err := s.reconciler.Reconcile(ctx, move); err != nil {
			return err
		}

		move.MarkPosted(s.now())
		if err := s.repo.MarkPosted(ctx, move.ID, *move.PostedAt); err != nil {
			return fmt.Errorf("mark posted: %w", err)
		}

		if err := s.hooks.Run(ctx, domain.AfterPost, move); err != nil {
			return err
		}

		posted = move
		return nil
	})
	if err != nil {
		span.RecordError(err)
		logger.Warn(ctx, "stock move post failed", "id", moveID, "error", err)
		return err
	}

	logger.Info(ctx, "stock move posted",
		"id", posted.ID,
		"move_no", posted.MoveNo,
		"move_type", posted.MoveType,
		"link_kind", posted.Link.Kind)

	return nil
}

// Get returns the move with its lines.
func (s *Service) Get(ctx context.Context, moveID id.ID) (*StockMove, error) {
	return s.repo.GetByID(ctx, moveID)
}

// List returns a page of move headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[StockMove], error) {
	filter.Pagination = filter.Pagination.Normalize()
	if filter.Status != nil && !filter.Status.Valid() {
		return domain.ListResult[StockMove]{}, invalidFilter("status", string(*filter.Status))
	}
	if filter.MoveType != nil && !filter.MoveType.Valid() {
		return domain.ListResult[StockMove]{}, invalidFilter("moveType", string(*filter.MoveType))
	}
	return s.repo.List(ctx, filter)
}

// assignNumber generates a move number when the caller left it empty.
func (s *Service) assignNumber(ctx context.Context, move *StockMove) error {
	if move.MoveNo != "" {
		return nil
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix), nil, move.MoveDate)
	if err != nil {
		return fmt.Errorf("generate move number: %w", err)
	}
	move.MoveNo = number
	return nil
}
