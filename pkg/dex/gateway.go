package dex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/icodex/icodex/pkg/util"
)

// Store persists the whole book. Save must replace the durable copy
// atomically; Load of a missing file yields an empty book.
type Store interface {
	Load() (*Book, error)
	Save(*Book) error
}

// FillRecorder journals committed fills. Recording is best-effort and must
// not veto an already-durable book mutation.
type FillRecorder interface {
	Record(Fill) error
}

// Gateway is the public operation surface: create, cancel, execute, list.
// One mutex serializes every whole validate-mutate-persist sequence, so no
// request ever observes a half-applied mutation. The only external call,
// the oracle pre-check inside ExecuteOrder, runs outside the critical
// section against an order snapshot and the preconditions are re-checked
// under the lock before committing.
type Gateway struct {
	mu     sync.Mutex
	book   *Book
	store  Store
	engine *MatchEngine
	fills  FillRecorder
	clock  util.Clock
	log    *zap.SugaredLogger

	// degraded is set when a failed save could not be rolled back to the
	// last durable snapshot; all further mutations are refused until
	// restart.
	degraded bool

	onMutate func(icoID string)
}

func NewGateway(book *Book, store Store, engine *MatchEngine, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		book:   book,
		store:  store,
		engine: engine,
		clock:  util.RealClock{},
		log:    log,
	}
}

// SetFillRecorder attaches a fill journal.
func (g *Gateway) SetFillRecorder(r FillRecorder) { g.fills = r }

// SetClock overrides the timestamp source (tests).
func (g *Gateway) SetClock(c util.Clock) { g.clock = c }

// OnMutate registers a hook invoked after every durable mutation, outside
// the critical section. Used by the API layer to broadcast book updates.
func (g *Gateway) OnMutate(fn func(icoID string)) { g.onMutate = fn }

// CreateOrder validates the fields, inserts a new resting sell order and
// persists before acknowledging.
func (g *Gateway) CreateOrder(icoID string, amount int64, price float64, owner string) (Order, error) {
	if icoID == "" || owner == "" {
		return Order{}, fmt.Errorf("%w: ico_id and owner are required", ErrValidation)
	}
	if amount <= 0 {
		return Order{}, fmt.Errorf("%w: amount must be positive, got %d", ErrValidation, amount)
	}
	if price <= 0 {
		return Order{}, fmt.Errorf("%w: price must be positive, got %v", ErrValidation, price)
	}

	g.mu.Lock()
	if err := g.healthy(); err != nil {
		g.mu.Unlock()
		return Order{}, err
	}
	o := NewOrder(icoID, owner, amount, price, g.clock.Now())
	if err := g.book.Insert(o); err != nil {
		g.mu.Unlock()
		return Order{}, err
	}
	if err := g.persist(); err != nil {
		g.mu.Unlock()
		return Order{}, err
	}
	created := *o
	g.mu.Unlock()

	g.log.Infow("order_created", "ico_id", icoID, "order_id", created.ID, "amount", amount, "price", price, "owner", owner)
	g.notify(icoID)
	return created, nil
}

// CancelOrder removes the order if owner matches, persisting the removal
// before acknowledging.
func (g *Gateway) CancelOrder(icoID, orderID, owner string) (Order, error) {
	if icoID == "" || orderID == "" || owner == "" {
		return Order{}, fmt.Errorf("%w: ico_id, order_id and owner are required", ErrValidation)
	}

	g.mu.Lock()
	if err := g.healthy(); err != nil {
		g.mu.Unlock()
		return Order{}, err
	}
	removed, err := g.book.Remove(icoID, orderID, owner)
	if err != nil {
		g.mu.Unlock()
		return Order{}, err
	}
	if err := g.persist(); err != nil {
		g.mu.Unlock()
		return Order{}, err
	}
	g.mu.Unlock()

	g.log.Infow("order_cancelled", "ico_id", icoID, "order_id", orderID, "owner", owner)
	g.notify(icoID)
	return removed, nil
}

// ExecuteOrder runs the two-phase fill: advisory balance pre-check against
// the oracle, then a re-validated reduce of the resting order. No funds
// move here; the returned Fill is the caller's input for building the
// actual settlement transaction.
func (g *Gateway) ExecuteOrder(ctx context.Context, req ExecuteRequest) (Fill, error) {
	if req.IcoID == "" || req.OrderID == "" || req.Buyer == "" || req.TokenMint == "" {
		return Fill{}, fmt.Errorf("%w: ico_id, order_id, buyer and token_mint_address are required", ErrValidation)
	}
	if req.TokenDecimals < 0 {
		return Fill{}, fmt.Errorf("%w: token_decimals must be >= 0, got %d", ErrValidation, req.TokenDecimals)
	}

	// Snapshot the order and reject doomed requests before the oracle
	// round-trip.
	g.mu.Lock()
	if err := g.healthy(); err != nil {
		g.mu.Unlock()
		return Fill{}, err
	}
	snapshot, err := g.book.Get(req.IcoID, req.OrderID)
	if err == nil {
		err = g.engine.CheckAmount(snapshot, req.Amount)
	}
	g.mu.Unlock()
	if err != nil {
		return Fill{}, err
	}

	// Oracle pre-check outside the critical section; the book stays free
	// for other operations while the RPC is in flight.
	if err := g.engine.Precheck(ctx, snapshot, req); err != nil {
		return Fill{}, err
	}

	// Commit. The order may have shrunk or vanished while the oracle call
	// was outstanding, so the preconditions are checked again.
	g.mu.Lock()
	if err := g.healthy(); err != nil {
		g.mu.Unlock()
		return Fill{}, err
	}
	current, err := g.book.Get(req.IcoID, req.OrderID)
	if err == nil {
		err = g.engine.CheckAmount(current, req.Amount)
	}
	if err != nil {
		g.mu.Unlock()
		return Fill{}, err
	}
	post, err := g.book.Reduce(req.IcoID, req.OrderID, req.Amount)
	if err != nil {
		g.mu.Unlock()
		return Fill{}, err
	}
	if err := g.persist(); err != nil {
		g.mu.Unlock()
		return Fill{}, err
	}
	fill := Fill{
		ID:              uuid.NewString(),
		IcoID:           req.IcoID,
		OrderID:         req.OrderID,
		FilledAmount:    req.Amount,
		RemainingAmount: post.Amount,
		Price:           post.Price,
		Seller:          post.Owner,
		Buyer:           req.Buyer,
		Timestamp:       g.clock.Now().UnixMilli(),
	}
	g.mu.Unlock()

	if g.fills != nil {
		// Journal failure does not undo a durable book mutation.
		if err := g.fills.Record(fill); err != nil {
			g.log.Warnw("fill_journal_failed", "fill_id", fill.ID, "err", err)
		}
	}
	g.log.Infow("order_executed", "ico_id", req.IcoID, "order_id", req.OrderID,
		"filled", fill.FilledAmount, "remaining", fill.RemainingAmount, "buyer", req.Buyer)
	g.notify(req.IcoID)
	return fill, nil
}

// GetOrders lists up to limit orders for the ICO. Default ordering is
// insertion order; byPrice opts into ascending price with created_at, then
// id, as tie-breaks.
func (g *Gateway) GetOrders(icoID string, limit int, byPrice bool) []Order {
	g.mu.Lock()
	orders := g.book.List(icoID, limit)
	g.mu.Unlock()

	if byPrice {
		sort.Slice(orders, func(i, j int) bool {
			if orders[i].Price != orders[j].Price {
				return orders[i].Price < orders[j].Price
			}
			if orders[i].CreatedAt != orders[j].CreatedAt {
				return orders[i].CreatedAt < orders[j].CreatedAt
			}
			return orders[i].ID < orders[j].ID
		})
	}
	return orders
}

// healthy is called with mu held.
func (g *Gateway) healthy() error {
	if g.degraded {
		return fmt.Errorf("%w: store unhealthy, mutations refused until restart", ErrPersistence)
	}
	return nil
}

// persist saves the book; on failure the in-memory state is rolled back to
// the last durable snapshot so the failed mutation never becomes visible.
// Called with mu held.
func (g *Gateway) persist() error {
	err := g.store.Save(g.book)
	if err == nil {
		return nil
	}
	restored, lerr := g.store.Load()
	if lerr != nil {
		g.degraded = true
		g.log.Errorw("book_rollback_failed", "save_err", err, "load_err", lerr)
		return fmt.Errorf("%w: save failed and rollback failed: %v", ErrPersistence, err)
	}
	g.book = restored
	g.log.Errorw("book_mutation_rolled_back", "err", err)
	return err
}

func (g *Gateway) notify(icoID string) {
	if g.onMutate != nil {
		g.onMutate(icoID)
	}
}
