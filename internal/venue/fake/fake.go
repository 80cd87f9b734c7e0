// Package fake provides a fully in-memory venue.Adapter used by unit tests
// and examples — the only "venue adapter" implementation this repository
// ships, since real HTTP/WS venue clients are out of scope (spec.md §1).
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Adapter is a deterministic, in-process stand-in for a real venue. Orders
// placed with Type MARKET fill immediately; LIMIT orders stay WAITING_FILL
// until the test calls Fill or CancelOrder.
type Adapter struct {
	mu sync.Mutex

	name      venue.Name
	positions map[string]venue.Position // keyed by normalized
	orders    map[string]*venue.Order   // keyed by orderID
	marks     map[string]float64
	symbols   []string
	fundings  map[string]venue.FundingRate

	events  chan venue.Event
	nextID  int
	balance float64

	// PlaceOrderErr, when set, is returned verbatim by the next PlaceOrder
	// call and then cleared — used to simulate a single-leg failure.
	PlaceOrderErr error
}

func New(name venue.Name) *Adapter {
	return &Adapter{
		name:      name,
		positions: map[string]venue.Position{},
		orders:    map[string]*venue.Order{},
		marks:     map[string]float64{},
		fundings:  map[string]venue.FundingRate{},
		events:    make(chan venue.Event, 64),
		balance:   100000,
	}
}

func (a *Adapter) Venue() venue.Name { return a.name }

func (a *Adapter) SetMark(normalized string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.marks[normalized] = price
}

func (a *Adapter) SetSymbols(symbols []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.symbols = symbols
}

func (a *Adapter) SetFunding(f venue.FundingRate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fundings[f.Normalized] = f
}

// SeedPosition directly installs a position, bypassing order placement —
// used to set up SINGLE_LEG/VALID scenarios in tests.
func (a *Adapter) SeedPosition(p venue.Position) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.positions[p.Normalized] = p
}

func (a *Adapter) PlaceOrder(ctx context.Context, req venue.PlaceOrderRequest) (venue.PlaceOrderResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.PlaceOrderErr != nil {
		err := a.PlaceOrderErr
		a.PlaceOrderErr = nil
		return venue.PlaceOrderResponse{}, err
	}

	a.nextID++
	id := fmt.Sprintf("%s-%d", a.name, a.nextID)
	status := venue.WaitingFill
	filled := 0.0
	avg := req.Price
	if req.Type == venue.Market {
		status = venue.Filled
		filled = req.Size
		if mp, ok := a.marks[req.Normalized]; ok {
			avg = mp
		}
		a.applyFill(req, filled, avg)
	}

	a.orders[id] = &venue.Order{
		OrderID:    id,
		Venue:      a.name,
		Normalized: req.Normalized,
		Side:       req.Side,
		Size:       req.Size,
		Price:      req.Price,
		Type:       req.Type,
		ReduceOnly: req.ReduceOnly,
		TIF:        req.TIF,
		Status:     status,
		PlacedAt:   time.Now(),
	}

	return venue.PlaceOrderResponse{OrderID: id, Status: status, FilledSize: filled, AvgFillPrice: avg}, nil
}

// Fill marks a resting order filled and applies the position delta — test
// helper standing in for a real fill notification.
func (a *Adapter) Fill(orderID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	if !o.Status.Active() {
		return nil
	}
	avg := o.Price
	if mp, ok := a.marks[o.Normalized]; ok {
		avg = mp
	}
	req := venue.PlaceOrderRequest{Normalized: o.Normalized, Side: o.Side, Size: o.Size, ReduceOnly: o.ReduceOnly}
	a.applyFill(req, o.Size, avg)
	o.Status = venue.Filled
	a.events <- venue.Event{Kind: venue.OrderUpdateEvent, Venue: a.name, Order: o}
	return nil
}

func (a *Adapter) applyFill(req venue.PlaceOrderRequest, filled, price float64) {
	pos, exists := a.positions[req.Normalized]
	if !exists {
		pos = venue.Position{Venue: a.name, Normalized: req.Normalized, Side: req.Side, EntryPrice: price, MarkPrice: price, OpenedAt: time.Now()}
	}
	switch pos.Side {
	case req.Side:
		if !req.ReduceOnly {
			pos.Size += filled
		}
	default:
		pos.Size -= filled
		if pos.Size < 0 {
			if req.ReduceOnly {
				pos.Size = 0
			} else {
				pos.Side = pos.Side.Opposite()
				pos.Size = -pos.Size
			}
		}
	}
	pos.MarkPrice = price
	pos.LastUpdated = time.Now()
	if pos.Closed() {
		delete(a.positions, req.Normalized)
		return
	}
	a.positions[req.Normalized] = pos
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID, normalized string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.orders[orderID]
	if !ok || !o.Status.Active() {
		return false, nil
	}
	o.Status = venue.Cancelled
	return true, nil
}

func (a *Adapter) CancelAllOrders(ctx context.Context, normalized string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, o := range a.orders {
		if o.Normalized == normalized && o.Status.Active() {
			o.Status = venue.Cancelled
			n++
		}
	}
	return n, nil
}

func (a *Adapter) GetOrderStatus(ctx context.Context, orderID, normalized string) (venue.OrderStatusResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.orders[orderID]
	if !ok {
		return venue.OrderStatusResponse{}, venue.NewAdapterError(a.name, "GetOrderStatus", venue.KindNotFound, fmt.Errorf("order %s not found", orderID))
	}
	return venue.OrderStatusResponse{OrderID: o.OrderID, Normalized: o.Normalized, Status: o.Status}, nil
}

func (a *Adapter) GetOpenOrders(ctx context.Context) ([]venue.OpenOrder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []venue.OpenOrder
	for _, o := range a.orders {
		if o.Status.Active() {
			out = append(out, venue.OpenOrder{OrderID: o.OrderID, Normalized: o.Normalized, Side: o.Side, Price: o.Price, Size: o.Size, PlacedAt: o.PlacedAt})
		}
	}
	return out, nil
}

func (a *Adapter) GetPositions(ctx context.Context) ([]venue.Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]venue.Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, p)
	}
	return out, nil
}

func (a *Adapter) GetPosition(ctx context.Context, normalized string) (*venue.Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.positions[normalized]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (a *Adapter) GetMarkPrice(ctx context.Context, normalized string) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.marks[normalized]
	if !ok || p <= 0 {
		return 0, venue.NewAdapterError(a.name, "GetMarkPrice", venue.KindNotFound, fmt.Errorf("no mark for %s", normalized))
	}
	return p, nil
}

func (a *Adapter) GetBestBidAsk(ctx context.Context, normalized string) (float64, float64, error) {
	mp, err := a.GetMarkPrice(ctx, normalized)
	if err != nil {
		return 0, 0, err
	}
	return mp * 0.9995, mp * 1.0005, nil
}

func (a *Adapter) GetBalance(ctx context.Context) (float64, error)         { return a.balance, nil }
func (a *Adapter) GetEquity(ctx context.Context) (float64, error)         { return a.balance, nil }
func (a *Adapter) GetAvailableMargin(ctx context.Context) (float64, error) { return a.balance, nil }

func (a *Adapter) ListSymbols(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.symbols...), nil
}

func (a *Adapter) GetFundingData(ctx context.Context, q venue.FundingQuery) (*venue.FundingRate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.fundings[q.Normalized]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (a *Adapter) GetFundingPayments(ctx context.Context, startMs, endMs *int64) ([]venue.FundingPayment, error) {
	return nil, nil
}

func (a *Adapter) SubscribePositionsAndOrders(ctx context.Context) (<-chan venue.Event, error) {
	out := make(chan venue.Event, cap(a.events))
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-a.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// PushPositionsUpdate lets a test simulate a WS push without going through
// PlaceOrder/Fill.
func (a *Adapter) PushPositionsUpdate() {
	positions, _ := a.GetPositions(context.Background())
	a.events <- venue.Event{Kind: venue.PositionsUpdateEvent, Venue: a.name, Positions: positions}
}
