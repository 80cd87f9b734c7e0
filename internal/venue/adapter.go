package venue

import "context"

// Adapter is the uniform contract every venue integration implements
// (spec.md §6). The orchestration engine never talks to a venue directly;
// it only ever calls through this interface, so a real HTTP/WS client and a
// fully in-memory fake (see package fake) are interchangeable.
type Adapter interface {
	Venue() Name

	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, orderID, normalized string) (bool, error)
	CancelAllOrders(ctx context.Context, normalized string) (int, error)
	GetOrderStatus(ctx context.Context, orderID, normalized string) (OrderStatusResponse, error)
	GetOpenOrders(ctx context.Context) ([]OpenOrder, error)

	GetPositions(ctx context.Context) ([]Position, error)
	GetPosition(ctx context.Context, normalized string) (*Position, error)

	GetMarkPrice(ctx context.Context, normalized string) (float64, error)
	GetBestBidAsk(ctx context.Context, normalized string) (bid, ask float64, err error)

	GetBalance(ctx context.Context) (float64, error)
	GetEquity(ctx context.Context) (float64, error)
	GetAvailableMargin(ctx context.Context) (float64, error)

	ListSymbols(ctx context.Context) ([]string, error)
	GetFundingData(ctx context.Context, q FundingQuery) (*FundingRate, error)
	GetFundingPayments(ctx context.Context, startMs, endMs *int64) ([]FundingPayment, error)

	// SubscribePositionsAndOrders starts streaming and returns a channel of
	// Events. The channel is closed when ctx is cancelled.
	SubscribePositionsAndOrders(ctx context.Context) (<-chan Event, error)
}

// EventKind discriminates the two push-event shapes a venue emits.
type EventKind string

const (
	OrderUpdateEvent     EventKind = "order_update"
	PositionsUpdateEvent EventKind = "positions_update"
)

// Event is the single typed value every venue pushes on its WS channel
// (Design Notes §9: typed channels instead of string-keyed emitters).
type Event struct {
	Kind      EventKind
	Venue     Name
	Order     *Order     // set iff Kind == OrderUpdateEvent
	Positions []Position // set iff Kind == PositionsUpdateEvent (full replace slice)
}
