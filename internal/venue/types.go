package venue

import "time"

// Name enumerates the perpetual-futures venues the keeper trades on.
type Name string

const (
	Hyperliquid Name = "HYPERLIQUID"
	Lighter     Name = "LIGHTER"
	Aster       Name = "ASTER"
	Extended    Name = "EXTENDED"
)

// Side is a position or order direction.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// OrderType selects how an order is matched.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// TimeInForce controls order lifetime policy.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

// OrderStatus tracks the lifecycle of a placed order.
type OrderStatus string

const (
	Submitted       OrderStatus = "SUBMITTED"
	WaitingFill     OrderStatus = "WAITING_FILL"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Filled          OrderStatus = "FILLED"
	Cancelled       OrderStatus = "CANCELLED"
	Failed          OrderStatus = "FAILED"
	Expired         OrderStatus = "EXPIRED"
)

// Active reports whether an order still occupies the active-order registry.
func (s OrderStatus) Active() bool {
	switch s {
	case Submitted, WaitingFill, PartiallyFilled:
		return true
	default:
		return false
	}
}

// ClosedSizeEpsilon is the minimum |size| below which a position is treated
// as closed (spec.md §3, I3).
const ClosedSizeEpsilon = 0.0001

// Position is a single leg held on one venue for one normalized symbol.
type Position struct {
	Venue            Name
	Normalized       string
	Side             Side
	Size             float64
	EntryPrice       float64
	MarkPrice        float64
	UnrealizedPnl    float64
	Leverage         float64 // 0 means unknown
	LiquidationPrice float64 // 0 means unknown
	MarginUsed       float64
	OpenedAt         time.Time
	LastUpdated      time.Time
}

// Closed reports whether the position's size has decayed below epsilon.
func (p Position) Closed() bool {
	return absF(p.Size) < ClosedSizeEpsilon
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// MarkPriceEntry is a single observed mark price on one venue.
type MarkPriceEntry struct {
	Venue      Name
	Normalized string
	Price      float64
	Observed   time.Time
}

// FundingRate is a venue's funding quote for a normalized symbol.
//
// FundingPeriodHours lets the aggregator normalize to an hourly rate (spec.md
// §9 open question): a venue reporting daily funding sets this to 24.
type FundingRate struct {
	Venue              Name
	Normalized         string
	CurrentRate        float64
	PredictedRate      float64
	MarkPrice          float64
	OpenInterest       *float64
	Volume24h          *float64
	FundingPeriodHours int
	Observed           time.Time
}

// HourlyRate normalizes CurrentRate to a per-hour rate.
func (f FundingRate) HourlyRate() float64 {
	if f.FundingPeriodHours == 24 {
		return f.CurrentRate / 24
	}
	return f.CurrentRate
}

// Order is a resting or historical order on one venue.
type Order struct {
	OrderID    string
	Venue      Name
	Normalized string
	Side       Side
	Size       float64
	Price      float64 // 0 for market orders
	Type       OrderType
	ReduceOnly bool
	TIF        TimeInForce
	Status     OrderStatus
	PlacedAt   time.Time
}

// PlaceOrderRequest is the input to Adapter.PlaceOrder.
type PlaceOrderRequest struct {
	Normalized string
	Side       Side
	Size       float64
	Price      float64 // ignored for MARKET
	Type       OrderType
	ReduceOnly bool
	TIF        TimeInForce
	ClientID   string // caller-supplied idempotency token (uuid)
}

// PlaceOrderResponse is the result of a successful or failed order placement.
type PlaceOrderResponse struct {
	OrderID      string
	Status       OrderStatus
	FilledSize   float64
	AvgFillPrice float64
}

// OrderStatusResponse reflects the current state of a previously placed order.
type OrderStatusResponse struct {
	OrderID      string
	Normalized   string
	Status       OrderStatus
	FilledSize   float64
	AvgFillPrice float64
}

// OpenOrder is a single resting order as reported by getOpenOrders.
type OpenOrder struct {
	OrderID    string
	Normalized string
	Side       Side
	Price      float64
	Size       float64
	FilledSize float64
	PlacedAt   time.Time
}

// FundingQuery pairs a normalized symbol with the venue-native identifier the
// adapter should use to look up funding data.
type FundingQuery struct {
	Normalized string
	RawID      string
}

// FundingPayment is a single historical funding settlement.
type FundingPayment struct {
	Normalized string
	Amount     float64
	Rate       float64
	Timestamp  time.Time
}
