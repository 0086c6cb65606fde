package pos

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/appetiteclub/pos/pkg"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	sectionRepo  SectionRepo
	tableRepo    TableRepo
	orderRepo    OrderRepo
	deliveryRepo DeliveryRepo
	counter      Counter
	feeds        FeedGateway
	publisher    events.Publisher
	token        string
	logger       aqm.Logger
	config       *aqm.Config
	tlm          *telemetry.HTTP
}

type HandlerDeps struct {
	Repos     Repos
	Feeds     FeedGateway
	Publisher events.Publisher
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	var token string
	if config != nil {
		token, _ = config.GetString("auth.token")
	}

	return &Handler{
		sectionRepo:  hd.Repos.SectionRepo,
		tableRepo:    hd.Repos.TableRepo,
		orderRepo:    hd.Repos.OrderRepo,
		deliveryRepo: hd.Repos.DeliveryRepo,
		counter:      hd.Repos.Counter,
		feeds:        hd.Feeds,
		publisher:    hd.Publisher,
		token:        token,
		logger:       logger,
		config:       config,
		tlm:          telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(pkg.RequireBearer(h.token))

		r.Get("/sections", h.ListSections)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", h.ListTables)
			r.Post("/merge", h.MergeTables)
			r.Patch("/{id}/position", h.UpdatePosition)
			r.Post("/{id}/split", h.SplitTable)
			r.Post("/{id}/transfer", h.TransferTable)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Post("/{id}/payments", h.PayOrder)
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Post("/fetch", h.FetchDelivery)
			r.Get("/orders", h.ListDelivery)
			r.Post("/orders/{id}/accept", h.AcceptDelivery)
			r.Post("/orders/{id}/reject", h.RejectDelivery)
			r.Patch("/orders/{id}/status", h.UpdateDeliveryStatus)
		})
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log aqm.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		log.Debug("missing id parameter")
		aqm.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "id", idStr, "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}

	return id, true
}

// decodePayload reads a JSON body into dest. With optional set an empty body
// leaves dest untouched.
func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, log aqm.Logger, dest interface{}, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("error reading request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		if optional {
			return true
		}
		aqm.RespondError(w, http.StatusBadRequest, "Request body is empty")
		return false
	}

	if err := json.Unmarshal(body, dest); err != nil {
		log.Debug("error decoding JSON", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}

	return true
}

func (h *Handler) respondValidation(w http.ResponseWriter, log aqm.Logger, validationErrors []string) bool {
	if len(validationErrors) == 0 {
		return false
	}
	log.Debug("validation failed", "errors", validationErrors)
	aqm.RespondError(w, http.StatusBadRequest, "Validation failed: "+strings.Join(validationErrors, "; "))
	return true
}

// respondStateError maps domain refusals to 409 and everything else to 500.
func (h *Handler) respondStateError(w http.ResponseWriter, log aqm.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrTableHasOrder),
		errors.Is(err, ErrTargetNotEmpty),
		errors.Is(err, ErrNotMerged),
		errors.Is(err, ErrMergeConflict),
		errors.Is(err, ErrOrderPaid),
		errors.Is(err, ErrInvalidDeliveryTransition):
		log.Debug("request conflicts with current state", "error", err)
		aqm.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Error(fallback, "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, fallback)
	}
}
