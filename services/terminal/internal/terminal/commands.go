package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/appetiteclub/pos/services/terminal/internal/tables"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadCommand     = errors.New("malformed command")
)

// Command is a typed request coming from the UI shell.
type Command interface {
	Name() string
}

type SelectTable struct {
	TableID string `json:"table_id"`
}

type Deselect struct{}

type StartTakeaway struct{}

type AddItem struct {
	Product orders.Product `json:"product"`
}

type UpdateQuantity struct {
	Index int `json:"index"`
	Delta int `json:"delta"`
}

type RemoveItem struct {
	Index int `json:"index"`
}

type SetItemNote struct {
	Index int    `json:"index"`
	Note  string `json:"note"`
}

type MarkIkram struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type ApplyDiscount struct {
	Type  orders.DiscountType `json:"type"`
	Value decimal.Decimal     `json:"value"`
}

type ClearDiscount struct{}

type SetOrderNotes struct {
	Notes string `json:"notes"`
}

type SendOrder struct{}

type Pay struct {
	Method string          `json:"method"`
	Tip    decimal.Decimal `json:"tip"`
}

type SplitBill struct {
	Parties int `json:"parties"`
}

type TransferOrder struct {
	TargetTableID string `json:"target_table_id"`
}

type MergeTables struct {
	RootID   string   `json:"root_id"`
	TableIDs []string `json:"table_ids"`
}

type SplitTable struct {
	TableID string `json:"table_id"`
}

type SetEditLayout struct {
	Enabled bool `json:"enabled"`
}

type MoveTable struct {
	TableID  string          `json:"table_id"`
	Position tables.Position `json:"position"`
}

type FetchDelivery struct{}

type AcceptDelivery struct {
	ID          string `json:"id"`
	PrepMinutes int    `json:"prep_minutes"`
}

type RejectDelivery struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type MarkDeliveryReady struct {
	ID string `json:"id"`
}

type MarkDeliveryDelivered struct {
	ID string `json:"id"`
}

type OpenDeliveryOrder struct {
	ID string `json:"id"`
}

type SetDesktopPermission struct {
	Granted bool `json:"granted"`
}

type Refresh struct{}

func (*SelectTable) Name() string           { return "select_table" }
func (*Deselect) Name() string              { return "deselect" }
func (*StartTakeaway) Name() string         { return "start_takeaway" }
func (*AddItem) Name() string               { return "add_item" }
func (*UpdateQuantity) Name() string        { return "update_quantity" }
func (*RemoveItem) Name() string            { return "remove_item" }
func (*SetItemNote) Name() string           { return "set_item_note" }
func (*MarkIkram) Name() string             { return "mark_ikram" }
func (*ApplyDiscount) Name() string         { return "apply_discount" }
func (*ClearDiscount) Name() string         { return "clear_discount" }
func (*SetOrderNotes) Name() string         { return "set_order_notes" }
func (*SendOrder) Name() string             { return "send_order" }
func (*Pay) Name() string                   { return "pay" }
func (*SplitBill) Name() string             { return "split_bill" }
func (*TransferOrder) Name() string         { return "transfer_order" }
func (*MergeTables) Name() string           { return "merge_tables" }
func (*SplitTable) Name() string            { return "split_table" }
func (*SetEditLayout) Name() string         { return "set_edit_layout" }
func (*MoveTable) Name() string             { return "move_table" }
func (*FetchDelivery) Name() string         { return "fetch_delivery" }
func (*AcceptDelivery) Name() string        { return "accept_delivery" }
func (*RejectDelivery) Name() string        { return "reject_delivery" }
func (*MarkDeliveryReady) Name() string     { return "mark_delivery_ready" }
func (*MarkDeliveryDelivered) Name() string { return "mark_delivery_delivered" }
func (*OpenDeliveryOrder) Name() string     { return "open_delivery_order" }
func (*SetDesktopPermission) Name() string  { return "set_desktop_permission" }
func (*Refresh) Name() string               { return "refresh" }

var commandFactories = map[string]func() Command{}

func init() {
	for _, f := range []func() Command{
		func() Command { return &SelectTable{} },
		func() Command { return &Deselect{} },
		func() Command { return &StartTakeaway{} },
		func() Command { return &AddItem{} },
		func() Command { return &UpdateQuantity{} },
		func() Command { return &RemoveItem{} },
		func() Command { return &SetItemNote{} },
		func() Command { return &MarkIkram{} },
		func() Command { return &ApplyDiscount{} },
		func() Command { return &ClearDiscount{} },
		func() Command { return &SetOrderNotes{} },
		func() Command { return &SendOrder{} },
		func() Command { return &Pay{} },
		func() Command { return &SplitBill{} },
		func() Command { return &TransferOrder{} },
		func() Command { return &MergeTables{} },
		func() Command { return &SplitTable{} },
		func() Command { return &SetEditLayout{} },
		func() Command { return &MoveTable{} },
		func() Command { return &FetchDelivery{} },
		func() Command { return &AcceptDelivery{} },
		func() Command { return &RejectDelivery{} },
		func() Command { return &MarkDeliveryReady{} },
		func() Command { return &MarkDeliveryDelivered{} },
		func() Command { return &OpenDeliveryOrder{} },
		func() Command { return &SetDesktopPermission{} },
		func() Command { return &Refresh{} },
	} {
		commandFactories[f().Name()] = f
	}
}

// CommandNames lists every command the dispatcher understands.
func CommandNames() []string {
	names := make([]string, 0, len(commandFactories))
	for name := range commandFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeCommand builds the named command from a JSON body. An empty body is
// valid for commands without arguments.
func DecodeCommand(name string, body []byte) (Command, error) {
	factory, ok := commandFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	cmd := factory()
	if len(body) == 0 {
		return cmd, nil
	}
	if err := json.Unmarshal(body, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadCommand, name, err)
	}
	return cmd, nil
}

// Dispatcher routes commands to the terminal. Results are whatever the
// operation produced, nil when it produced nothing worth returning.
type Dispatcher struct {
	terminal *Terminal
}

func NewDispatcher(t *Terminal) *Dispatcher {
	return &Dispatcher{terminal: t}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (interface{}, error) {
	t := d.terminal
	switch c := cmd.(type) {
	case *SelectTable:
		return nil, t.SelectTable(ctx, c.TableID)
	case *Deselect:
		t.Deselect()
		return nil, nil
	case *StartTakeaway:
		t.StartTakeaway()
		return nil, nil
	case *AddItem:
		return nil, t.AddItem(c.Product)
	case *UpdateQuantity:
		return nil, t.UpdateQuantity(c.Index, c.Delta)
	case *RemoveItem:
		return nil, t.RemoveItem(c.Index)
	case *SetItemNote:
		return nil, t.SetItemNote(c.Index, c.Note)
	case *MarkIkram:
		return nil, t.MarkIkram(c.Index, c.Reason)
	case *ApplyDiscount:
		return nil, t.ApplyDiscount(c.Type, c.Value)
	case *ClearDiscount:
		return nil, t.ClearDiscount()
	case *SetOrderNotes:
		return nil, t.SetOrderNotes(c.Notes)
	case *SendOrder:
		return t.SendOrder(ctx)
	case *Pay:
		return t.Pay(ctx, c.Method, c.Tip)
	case *SplitBill:
		return t.SplitBill(c.Parties)
	case *TransferOrder:
		return nil, t.TransferOrder(ctx, c.TargetTableID)
	case *MergeTables:
		return nil, t.MergeTables(ctx, c.RootID, c.TableIDs)
	case *SplitTable:
		return nil, t.SplitTable(ctx, c.TableID)
	case *SetEditLayout:
		t.SetEditLayout(c.Enabled)
		return nil, nil
	case *MoveTable:
		return nil, t.MoveTable(ctx, c.TableID, c.Position)
	case *FetchDelivery:
		return nil, t.FetchDelivery(ctx)
	case *AcceptDelivery:
		return t.AcceptDelivery(ctx, c.ID, c.PrepMinutes)
	case *RejectDelivery:
		return t.RejectDelivery(ctx, c.ID, c.Reason)
	case *MarkDeliveryReady:
		return t.MarkDeliveryReady(ctx, c.ID)
	case *MarkDeliveryDelivered:
		return t.MarkDeliveryDelivered(ctx, c.ID)
	case *OpenDeliveryOrder:
		return t.OpenDeliveryInPOS(c.ID)
	case *SetDesktopPermission:
		return nil, t.SetDesktopPermission(c.Granted)
	case *Refresh:
		return nil, errors.Join(t.ReloadAll(ctx), t.ReloadDelivery(ctx))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}
