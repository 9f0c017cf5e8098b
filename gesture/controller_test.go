package gesture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drag-trade-go/balance"
	"drag-trade-go/intent"
	"drag-trade-go/order"
)

type fakePreview struct {
	price      float64
	priceOK    bool
	ts         int64
	tsOK       bool
	shown      []float64
	shownSides []string
	vshown     []int64
	hidden     int
	vhidden    int
}

func (p *fakePreview) PriceAtY(float64) (float64, bool) { return p.price, p.priceOK }
func (p *fakePreview) TimeAtX(float64) (int64, bool)    { return p.ts, p.tsOK }
func (p *fakePreview) ShowPreviewLine(price float64, side string) {
	p.shown = append(p.shown, price)
	p.shownSides = append(p.shownSides, side)
}
func (p *fakePreview) HidePreviewLine()                 { p.hidden++ }
func (p *fakePreview) ShowVerticalPreviewLine(ts int64) { p.vshown = append(p.vshown, ts) }
func (p *fakePreview) HideVerticalPreviewLine()         { p.vhidden++ }

type fakeBuilder struct {
	req   order.Request
	err   error
	drops []intent.Drop
}

func (b *fakeBuilder) BuildFromDrop(_ context.Context, d intent.Drop) (order.Request, error) {
	b.drops = append(b.drops, d)
	return b.req, b.err
}

type recorded struct {
	submitted []order.Request
	refs      []int64
	clicks    []string
	rejects   []error
	started   []string
	aborted   []string
}

func newTestController(p *fakePreview, b *fakeBuilder) (*Controller, *recorded) {
	rec := &recorded{}
	cb := Callbacks{
		Submit:       func(_ context.Context, r order.Request) { rec.submitted = append(rec.submitted, r) },
		SetReference: func(ts int64) { rec.refs = append(rec.refs, ts) },
		OnClick:      func(id string) { rec.clicks = append(rec.clicks, id) },
		OnReject:     func(err error) { rec.rejects = append(rec.rejects, err) },
		OnDragStart:  func(id string) { rec.started = append(rec.started, id) },
		OnDragAbort:  func(id string) { rec.aborted = append(rec.aborted, id) },
	}
	c := NewController(p, b, func(order.Side) float64 { return 0.01 }, cb, nil)
	c.SetModes(Modes{OrderMode: intent.ModeLimit, AccountMode: balance.ModeSpot})
	return c, rec
}

func TestShortGestureStaysAClick(t *testing.T) {
	p := &fakePreview{price: 50000, priceOK: true}
	c, rec := newTestController(p, &fakeBuilder{})

	c.HandleDragStart(DragBuyID, 100, 100)
	c.HandleDragMove(103, 104) // 5px, below threshold
	assert.Equal(t, StateArmed, c.State())
	assert.Empty(t, p.shown, "no preview before the drag is recognized")

	c.HandleDragEnd(context.Background(), true, 103, 104)
	assert.Equal(t, []string{DragBuyID}, rec.clicks)
	assert.Empty(t, rec.submitted)
	assert.Equal(t, StateIdle, c.State())
}

func TestDragActivatesAfterMinTravel(t *testing.T) {
	p := &fakePreview{price: 50000, priceOK: true}
	c, _ := newTestController(p, &fakeBuilder{})

	c.HandleDragStart(DragSellID, 100, 100)
	c.HandleDragMove(100, 109) // 9px
	assert.Equal(t, StateDragging, c.State())
	assert.Equal(t, DragSellID, c.ActiveDragID())
	require.NotEmpty(t, p.shown)
	assert.Equal(t, "sell", p.shownSides[0])
}

func TestMoveIsIdempotentRepositioning(t *testing.T) {
	p := &fakePreview{price: 50000, priceOK: true}
	c, _ := newTestController(p, &fakeBuilder{})

	c.HandleDragStart(DragBuyID, 0, 0)
	c.HandleDragMove(0, 20)
	p.price = 49000
	c.HandleDragMove(0, 40)
	c.HandleDragMove(0, 40)

	assert.Len(t, p.shown, 3, "each move repositions, nothing accumulates")
	assert.InDelta(t, 49000, p.shown[len(p.shown)-1], 1e-9)
}

func TestDropOutsideTargetAborts(t *testing.T) {
	p := &fakePreview{price: 50000, priceOK: true}
	b := &fakeBuilder{}
	c, rec := newTestController(p, b)

	c.HandleDragStart(DragBuyID, 0, 0)
	c.HandleDragMove(0, 20)
	c.HandleDragEnd(context.Background(), false, 0, 20)

	assert.Empty(t, rec.submitted)
	assert.Empty(t, b.drops, "builder never consulted")
	assert.Equal(t, 1, p.hidden, "preview hide is mandatory on abort")
	assert.Equal(t, []string{DragBuyID}, rec.aborted)
	assert.Equal(t, StateIdle, c.State())
}

func TestDragLifecycleCallbacksFireOnce(t *testing.T) {
	p := &fakePreview{price: 50000, priceOK: true}
	b := &fakeBuilder{req: order.Request{Symbol: "BTCUSDC", Side: order.SideBuy, Category: order.CategoryLimit, Quantity: 0.01, Price: 50000}}
	c, rec := newTestController(p, b)

	c.HandleDragStart(DragBuyID, 0, 0)
	c.HandleDragMove(0, 20)
	c.HandleDragMove(0, 40) // still the same drag
	c.HandleDragEnd(context.Background(), true, 0, 40)

	assert.Equal(t, []string{DragBuyID}, rec.started, "start fires on the threshold crossing only")
	assert.Empty(t, rec.aborted, "an on-target drop is not an abort")

	// a short gesture never becomes a drag
	c.HandleDragStart(DragSellID, 0, 0)
	c.HandleDragMove(2, 2)
	c.HandleDragEnd(context.Background(), true, 2, 2)
	assert.Len(t, rec.started, 1)
}

func TestOrderDropSubmits(t *testing.T) {
	p := &fakePreview{price: 50000, priceOK: true}
	b := &fakeBuilder{req: order.Request{Symbol: "BTCUSDC", Side: order.SideBuy, Category: order.CategoryLimit, Quantity: 0.01, Price: 50000}}
	c, rec := newTestController(p, b)

	c.HandleDragStart(DragBuyID, 0, 0)
	c.HandleDragMove(0, 120)
	c.HandleDragEnd(context.Background(), true, 0, 120)

	require.Len(t, rec.submitted, 1)
	assert.Equal(t, order.SideBuy, rec.submitted[0].Side)
	require.Len(t, b.drops, 1)
	assert.Equal(t, intent.ModeLimit, b.drops[0].OrderMode)
	assert.InDelta(t, 120.0, b.drops[0].Y, 1e-9)
	assert.InDelta(t, 0.01, b.drops[0].Quantity, 1e-9)
	assert.Equal(t, 1, p.hidden)
}

func TestRejectedDropSurfacesNoOrder(t *testing.T) {
	p := &fakePreview{price: 50000, priceOK: true}
	b := &fakeBuilder{err: errors.New("value_exceeded: order value 1000.00 exceeds limit of $500")}
	c, rec := newTestController(p, b)

	c.HandleDragStart(DragSellID, 0, 0)
	c.HandleDragMove(0, 120)
	c.HandleDragEnd(context.Background(), true, 0, 120)

	assert.Empty(t, rec.submitted)
	require.Len(t, rec.rejects, 1)
	assert.Equal(t, 1, p.hidden, "preview still hidden on rejection")
}

func TestReferenceDragUsesVerticalPreview(t *testing.T) {
	p := &fakePreview{ts: 1_700_000_000_000, tsOK: true}
	c, rec := newTestController(p, &fakeBuilder{})

	c.HandleDragStart(DragSetReferenceID, 0, 0)
	c.HandleDragMove(50, 0)
	assert.NotEmpty(t, p.vshown)
	assert.Empty(t, p.shown, "reference drag never shows the horizontal guide")

	c.HandleDragEnd(context.Background(), true, 50, 0)
	assert.Equal(t, []int64{1_700_000_000_000}, rec.refs)
	assert.Equal(t, 1, p.vhidden)
}

func TestReferenceDropWithUnresolvableTime(t *testing.T) {
	p := &fakePreview{tsOK: false}
	c, rec := newTestController(p, &fakeBuilder{})

	c.HandleDragStart(DragSetReferenceID, 0, 0)
	c.HandleDragMove(50, 0)
	c.HandleDragEnd(context.Background(), true, 50, 0)

	assert.Empty(t, rec.refs, "invalid timestamp persists nothing")
}

func TestUnknownDragIDIgnored(t *testing.T) {
	p := &fakePreview{price: 1, priceOK: true}
	c, rec := newTestController(p, &fakeBuilder{})

	c.HandleDragStart("drag-something-else", 0, 0)
	assert.Equal(t, StateIdle, c.State())
	c.HandleDragMove(0, 100)
	c.HandleDragEnd(context.Background(), true, 0, 100)
	assert.Empty(t, rec.submitted)
	assert.Empty(t, rec.clicks)
}
