package handlers

import (
	"bytes"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/importer"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/query"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/reqctx"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/retention"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/store"
)

// ActorResolver names who is changing an entry's status.
type ActorResolver func(c *fiber.Ctx) string

// RequestUser resolves the actor from the request's authenticated user.
func RequestUser(c *fiber.Ctx) string {
	if a := reqctx.From(c.UserContext()); a != nil && a.UserID() != "" {
		return a.UserID()
	}
	return "admin"
}

type LogHandler struct {
	entries  *store.Entries
	engine   *query.Engine
	pruner   *retention.Pruner
	importer *importer.Importer
	actor    ActorResolver
}

func NewLogHandler(entries *store.Entries, engine *query.Engine, pruner *retention.Pruner, imp *importer.Importer, actor ActorResolver) *LogHandler {
	if actor == nil {
		actor = RequestUser
	}
	return &LogHandler{entries: entries, engine: engine, pruner: pruner, importer: imp, actor: actor}
}

// List answers GET /logs. Filters come from query parameters; list values
// are comma separated and q uses the search syntax.
func (h *LogHandler) List(c *fiber.Ctx) error {
	return h.query(c, SpecFromQuery(c))
}

// Search answers POST /logs/search with a JSON FilterSpec body.
func (h *LogHandler) Search(c *fiber.Ctx) error {
	var spec query.FilterSpec
	if err := c.BodyParser(&spec); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return h.query(c, spec)
}

func (h *LogHandler) query(c *fiber.Ctx, spec query.FilterSpec) error {
	page, err := h.engine.Query(c.UserContext(), spec)
	if err != nil {
		return fail(c, err, "Failed to fetch logs")
	}
	return c.JSON(page)
}

// SpecFromQuery builds a FilterSpec from URL query parameters.
func SpecFromQuery(c *fiber.Ctx) query.FilterSpec {
	spec := query.FilterSpec{
		Channels:        csv(c.Query("channels")),
		ExcludeChannels: csv(c.Query("exclude_channels")),
		Methods:         csv(c.Query("methods")),
		ExcludeMethods:  csv(c.Query("exclude_methods")),
		DateFrom:        c.Query("date_from"),
		DateTo:          c.Query("date_to"),
		TraceID:         c.Query("trace_id"),
		UserID:          c.Query("user_id"),
		IPAddress:       c.Query("ip_address", c.Query("ip")),
		URL:             c.Query("url"),
		Fingerprint:     c.Query("fingerprint"),
		SearchMode:      query.Mode(strings.ToLower(c.Query("search_mode"))),
		Page:            c.QueryInt("page", 0),
		PerPage:         c.QueryInt("per_page", 0),
	}
	for _, l := range csv(c.Query("levels")) {
		spec.Levels = append(spec.Levels, models.Level(strings.ToLower(l)))
	}
	for _, l := range csv(c.Query("exclude_levels")) {
		spec.ExcludeLevels = append(spec.ExcludeLevels, models.Level(strings.ToLower(l)))
	}
	for _, s := range csv(c.Query("statuses")) {
		spec.Statuses = append(spec.Statuses, models.Status(strings.ToLower(s)))
	}
	if q := c.Query("q"); q != "" {
		spec.Search = query.ParseSearch(q)
	}
	return spec
}

func (h *LogHandler) Show(c *fiber.Ctx) error {
	e, err := h.entries.Find(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err, "Failed to fetch log entry")
	}
	return c.JSON(e)
}

func (h *LogHandler) Similar(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	similar, err := h.entries.Similar(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return fail(c, err, "Failed to fetch similar entries")
	}
	return c.JSON(fiber.Map{"data": similar})
}

func (h *LogHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.SetStatusRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err, "Invalid request body")
	}
	e, err := h.entries.SetStatus(c.UserContext(), c.Params("id"), models.Status(req.Status), h.actor(c), req.Note)
	if err != nil {
		return fail(c, err, "Failed to update status")
	}
	return c.JSON(e)
}

func (h *LogHandler) UpdateNote(c *fiber.Ctx) error {
	var req dto.UpdateNoteRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err, "Invalid request body")
	}
	e, err := h.entries.UpdateNote(c.UserContext(), c.Params("id"), req.Note)
	if err != nil {
		return fail(c, err, "Failed to update note")
	}
	return c.JSON(e)
}

func (h *LogHandler) Delete(c *fiber.Ctx) error {
	if err := h.entries.Delete(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err, "Failed to delete log entry")
	}
	return c.JSON(dto.MessageResponse{Message: "Log entry deleted"})
}

func (h *LogHandler) BulkDelete(c *fiber.Ctx) error {
	var req dto.BulkDeleteRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err, "Invalid request body")
	}
	n, err := h.entries.DeleteIDs(c.UserContext(), req.IDs)
	if err != nil {
		return fail(c, err, "Failed to delete log entries")
	}
	return c.JSON(dto.DeletedResponse{Deleted: n})
}

// Clear deletes every entry matching the posted FilterSpec. An empty body
// clears the whole table.
func (h *LogHandler) Clear(c *fiber.Ctx) error {
	var spec query.FilterSpec
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&spec); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	scope, err := query.Scope(spec)
	if err != nil {
		return fail(c, err, "Invalid filters")
	}
	n, err := h.entries.DeleteMatching(c.UserContext(), scope)
	if err != nil {
		return fail(c, err, "Failed to clear log entries")
	}
	return c.JSON(dto.DeletedResponse{Deleted: n})
}

func (h *LogHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.entries.Stats(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to compute stats")
	}
	return c.JSON(stats)
}

// Levels lists the level names filters accept, least severe first.
func (h *LogHandler) Levels(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": models.Levels()})
}

func (h *LogHandler) Prune(c *fiber.Ctx) error {
	var req dto.PruneRequest
	if len(c.Body()) > 0 {
		if err := decode(c, &req); err != nil {
			return fail(c, err, "Invalid request body")
		}
	}
	run := h.pruner.Run
	if req.DryRun {
		run = h.pruner.Preview
	}
	res, err := run(c.UserContext(), req.Days)
	if err != nil {
		return fail(c, err, "Failed to prune log entries")
	}
	return c.JSON(res)
}

// Import accepts a log file as the multipart field "file" or as the raw body.
func (h *LogHandler) Import(c *fiber.Ctx) error {
	var r io.Reader
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "Unreadable upload")
		}
		defer f.Close()
		r = f
	} else if len(c.Body()) > 0 {
		r = bytes.NewReader(c.Body())
	} else {
		return badRequest(c, "No log file provided")
	}

	res, err := h.importer.ImportReader(c.UserContext(), r)
	if err != nil {
		return fail(c, err, "Failed to import log file")
	}
	return c.JSON(res)
}

func csv(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
