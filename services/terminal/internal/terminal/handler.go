package terminal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/appetiteclub/pos/services/terminal/internal/delivery"
	"github.com/appetiteclub/pos/services/terminal/internal/notify"
	"github.com/appetiteclub/pos/services/terminal/internal/orders"
	"github.com/appetiteclub/pos/services/terminal/internal/tables"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	MaxBodyBytes = 1 << 16

	keepAliveInterval = 30 * time.Second
)

// Handler exposes the terminal to its UI shell: a state snapshot, one POST
// per command and an SSE stream of state changes and side effects.
type Handler struct {
	terminal   *Terminal
	dispatcher *Dispatcher
	broker     *Broker
	logger     aqm.Logger
	tlm        *telemetry.HTTP
}

func NewHandler(t *Terminal, broker *Broker, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		terminal:   t,
		dispatcher: NewDispatcher(t),
		broker:     broker,
		logger:     logger,
		tlm:        telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Get("/commands", h.ListCommands)
	r.Post("/commands/{name}", h.RunCommand)
	r.Get("/events", h.Events)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetState")
	defer finish()

	aqm.RespondSuccess(w, NewView(h.terminal.Store().Snapshot()))
}

func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListCommands")
	defer finish()

	aqm.RespondSuccess(w, CommandNames())
}

func (h *Handler) RunCommand(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RunCommand")
	defer finish()

	log := h.log(r)
	name := chi.URLParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("error reading request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = nil
	}

	cmd, err := DecodeCommand(name, body)
	if err != nil {
		log.Debug("cannot decode command", "command", name, "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnknownCommand) {
			status = http.StatusNotFound
		}
		aqm.RespondError(w, status, err.Error())
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), cmd)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error("command failed", "command", name, "error", err)
		} else {
			log.Debug("command refused", "command", name, "error", err)
		}
		aqm.RespondError(w, status, err.Error())
		return
	}

	aqm.RespondSuccess(w, commandResult{
		Command: name,
		Result:  result,
		State:   NewView(h.terminal.Store().Snapshot()),
	})
}

type commandResult struct {
	Command string      `json:"command"`
	Result  interface{} `json:"result,omitempty"`
	State   View        `json:"state"`
}

// Events streams "state" on every store change and forwards notification
// side effects (sound, desktop) under their own event names.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	h.logger.Info("new SSE connection", "subscriber_id", subscriberID)

	store := h.terminal.Store()
	states := store.Subscribe(subscriberID)
	defer store.Unsubscribe(subscriberID)

	var effects <-chan Event
	if h.broker != nil {
		effects = h.broker.Subscribe(subscriberID)
		defer h.broker.Unsubscribe(subscriberID)
	}

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	h.sendState(w, store.Snapshot())

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case st, ok := <-states:
			if !ok {
				return
			}
			h.sendState(w, st)

		case evt, ok := <-effects:
			if !ok {
				return
			}
			sendSSEEvent(w, evt.Kind, string(evt.Data))
		}
	}
}

func (h *Handler) sendState(w http.ResponseWriter, st State) {
	data, err := json.Marshal(NewView(st))
	if err != nil {
		h.logger.Error("cannot marshal state", "error", err)
		return
	}
	sendSSEEvent(w, "state", string(data))
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}

func sendSSEEvent(w http.ResponseWriter, eventType string, data string) {
	fmt.Fprintf(w, "event: %s\n", eventType)
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprintf(w, "\n")
	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, tables.ErrTableNotFound), errors.Is(err, delivery.ErrOrderNotFound),
		errors.Is(err, orders.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, tables.ErrInvalidTransition), errors.Is(err, tables.ErrTableNotEmpty),
		errors.Is(err, delivery.ErrInvalidTransition), errors.Is(err, orders.ErrOrderPaid),
		errors.Is(err, orders.ErrTargetNotEmpty), errors.Is(err, ErrMergedTransfer),
		errors.Is(err, ErrNoOrderForTable):
		return http.StatusConflict
	case errors.Is(err, tables.ErrMergeNeedsTwoTables), errors.Is(err, tables.ErrMergeDuplicate),
		errors.Is(err, tables.ErrNotMerged), errors.Is(err, tables.ErrLayoutLocked),
		errors.Is(err, orders.ErrEmptyOrder), errors.Is(err, orders.ErrIkramReason),
		errors.Is(err, orders.ErrAlreadyIkram), errors.Is(err, orders.ErrInvalidDiscount),
		errors.Is(err, orders.ErrInvalidSplit), errors.Is(err, orders.ErrInvalidProduct),
		errors.Is(err, orders.ErrTipNotAccepted), errors.Is(err, orders.ErrNegativeTip),
		errors.Is(err, orders.ErrUnknownMethod), errors.Is(err, orders.ErrSameTable),
		errors.Is(err, orders.ErrQuantityLimit),
		errors.Is(err, delivery.ErrNotAccepted), errors.Is(err, ErrNoOpenOrder),
		errors.Is(err, ErrNoTableSelected), errors.Is(err, ErrNoPermissionSink):
		return http.StatusUnprocessableEntity
	default:
		// everything else failed on the way to or inside the backend
		return http.StatusBadGateway
	}
}

var _ notify.Sink = (*Broker)(nil)
var _ notify.Toaster = (*Store)(nil)
