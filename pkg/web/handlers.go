// Package web provides the HTTP API over stored workflows and the refinement loop.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/refiner/pkg/graph"
	"github.com/dukex/refiner/pkg/models"
	"github.com/dukex/refiner/pkg/persistence"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	store        persistence.Persistence
	orchestrator *refinement.Orchestrator
	validator    *validator.Validate
	defaults     refinement.RunOptions
	logger       *slog.Logger
}

func NewAPIHandlers(
	store persistence.Persistence,
	orchestrator *refinement.Orchestrator,
	validator *validator.Validate,
	defaults refinement.RunOptions,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		store:        store,
		orchestrator: orchestrator,
		validator:    validator,
		defaults:     defaults,
		logger:       logger.With("module", "web"),
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/refine", h.RefineWorkflow)

	r := router.Group("/roots")
	r.Get("/:rootId/lineage", h.GetLineage)
	r.Get("/:rootId/audit", h.GetAuditTrail)

	router.Post("/validate", h.ValidateWorkflow)
	router.Post("/evaluate", h.EvaluateWorkflow)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	opts, err := parseListWorkflowsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.store.ListWorkflows(c.Context(), opts)
	if err != nil {
		return handleError(c, err)
	}

	normalized, _ := opts.Normalize()

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  normalized.Limit,
			"offset": normalized.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    normalized.SortBy,
			"sort_order": normalized.SortOrder,
		},
	})
}

func parseListWorkflowsOptions(c fiber.Ctx) (persistence.ListWorkflowsOptions, error) {
	opts := persistence.ListWorkflowsOptions{
		ParentID:  c.Query("parent_id"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return opts, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return opts, err
		}

		opts.Offset = offset
	}

	return opts, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.store.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(workflow)
}

// CreateWorkflow validates, repairs and evaluates a workflow before storing it.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return internalError(c, err)
		}

		workflow.ID = id.String()
	}

	if workflow.Version == "" {
		workflow.Version = "1"
	}

	if err := h.validator.Struct(workflow); err != nil {
		return badRequest(c, err.Error())
	}

	prepared, _, err := h.orchestrator.Inspect(&workflow)
	if err != nil {
		return handleError(c, err)
	}

	if err := h.store.SaveWorkflow(c.Context(), prepared); err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(prepared)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.store.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RefineWorkflow runs a refinement tree from a stored workflow.
func (h *APIHandlers) RefineWorkflow(c fiber.Ctx) error {
	var req RefineRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.store.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	opts := h.defaults
	opts.RootID = req.RootID

	if req.TerminationCondition != "" {
		opts.TerminationCondition = req.TerminationCondition
	}

	if req.StepCost != nil {
		opts.StepCost = *req.StepCost
	}

	outcome, err := h.orchestrator.Refine(c.Context(), workflow, opts)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Refinement failed", "root_id", workflow.Root(), "error", err)

		return internalError(c, err)
	}

	response := RefineResponse{Outcome: outcome}
	if outcome.Err != nil {
		response.Error = outcome.Err.Error()
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetLineage(c fiber.Ctx) error {
	records, err := h.store.Lineage(c.Context(), c.Params("rootId"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{"root_id": c.Params("rootId"), "records": records})
}

func (h *APIHandlers) GetAuditTrail(c fiber.Ctx) error {
	rootID := c.Params("rootId")

	ledger, err := h.orchestrator.Guard().LoadLedger(c.Context(), rootID)
	if err != nil {
		return handleError(c, err)
	}

	snapshots, err := h.orchestrator.Guard().Trail(c.Context(), rootID)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"root_id":   rootID,
		"ledger":    ledger,
		"snapshots": snapshots,
	})
}

// ValidateWorkflow reports the graph check of the posted workflow without storing it.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	prepared, result, err := h.orchestrator.Inspect(&workflow)

	response := ValidationResponse{
		Valid:   err == nil,
		Graph:   result.Graph,
		Repairs: result.Repairs,
		Notes:   result.Notes(),
	}

	if response.Repairs == nil {
		response.Repairs = []graph.Repair{}
	}

	if err != nil {
		response.Error = err.Error()

		if !graph.IsStructuralFailure(err) {
			return handleError(c, err)
		}

		return c.Status(fiber.StatusUnprocessableEntity).JSON(response)
	}

	response.Graph = prepared.Graph

	return c.JSON(response)
}

// EvaluateWorkflow scores the posted workflow after graph repair.
func (h *APIHandlers) EvaluateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	prepared, _, err := h.orchestrator.Inspect(&workflow)
	if err != nil {
		return handleError(c, err)
	}

	notes := prepared.Notes
	if notes == nil {
		notes = []string{}
	}

	return c.JSON(EvaluationResponse{Evaluation: prepared.Evaluation, Notes: notes})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Refiner API is healthy"
	httpStatus := http.StatusOK

	repositoryCheck := "ok"

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Refiner API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
