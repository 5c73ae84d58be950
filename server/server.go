// Package server exposes the flow persistence protocol and the editor
// session API over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/client"
	"github.com/meikuraledutech/apiflow/flowjson"
	"github.com/meikuraledutech/apiflow/graph"
	"github.com/meikuraledutech/apiflow/nodeconfig"
	"github.com/meikuraledutech/apiflow/registry"
	"github.com/meikuraledutech/apiflow/session"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry sets the registry served as the palette.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Server) {
		if r != nil {
			s.registry = r
		}
	}
}

// Server is the HTTP front of a flow store and a session manager.
type Server struct {
	app      *fiber.App
	flows    apiflow.Store
	sessions *session.Manager
	registry *registry.Registry
	logger   *slog.Logger
}

// New builds the HTTP app. sessions may be nil to serve only the flow
// persistence protocol.
func New(flows apiflow.Store, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		flows:    flows,
		sessions: sessions,
		registry: registry.Default(),
		logger:   slog.Default(),
	}
	if sessions != nil {
		s.registry = sessions.Registry()
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{AppName: "apiflow"})
	s.app.Use(recoverer.New())
	s.app.Use(s.logRequests)
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

func (s *Server) routes() {
	app := s.app

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/api/registry", func(c fiber.Ctx) error {
		return c.JSON(s.registry.Groups())
	})

	// ── Schema ────────────────────────────────────────────────────────
	if m, ok := s.flows.(apiflow.Migrator); ok {
		app.Post("/api/schema", func(c fiber.Ctx) error {
			if err := m.CreateSchema(c.Context()); err != nil {
				return c.Status(500).JSON(fiber.Map{"error": err.Error()})
			}
			return c.JSON(fiber.Map{"message": "schema created"})
		})

		app.Delete("/api/schema", func(c fiber.Ctx) error {
			if err := m.DropSchema(c.Context()); err != nil {
				return c.Status(500).JSON(fiber.Map{"error": err.Error()})
			}
			return c.JSON(fiber.Map{"message": "schema dropped"})
		})
	}

	// ── Flows ─────────────────────────────────────────────────────────
	app.Get("/api/flows", s.getFlows)
	app.Post("/api/flows", s.saveFlow)
	app.Delete("/api/flows/:id", func(c fiber.Ctx) error {
		err := s.flows.DeleteFlow(c.Context(), c.Params("id"))
		if errors.Is(err, client.ErrUnsupported) {
			return c.Status(501).JSON(fiber.Map{"error": "delete not supported by this store"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendStatus(204)
	})

	if s.sessions != nil {
		s.sessionRoutes()
	}
}

// getFlows lists flows, or returns one flow when ?id= is given. A missing
// flow answers {} like the remote flow server does.
func (s *Server) getFlows(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		flows, err := s.flows.ListFlows(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if flows == nil {
			flows = []apiflow.Summary{}
		}
		return c.JSON(flows)
	}

	f, err := s.flows.GetFlow(c.Context(), id)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if f == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(flowjson.Serialize(f, s.registry))
}

func (s *Server) saveFlow(c fiber.Ctx) error {
	var doc flowjson.Document
	if err := c.Bind().JSON(&doc); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "invalid body"})
	}
	f := flowjson.Deserialize(doc, s.registry)
	if f.Name == "" {
		return c.Status(422).JSON(fiber.Map{"success": false, "error": apiflow.ErrNameRequired.Error()})
	}

	id, err := s.flows.SaveFlow(c.Context(), f)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "id": id})
}

// ── Sessions ──────────────────────────────────────────────────────────

type sessionHandler func(c fiber.Ctx, sess *session.Session) error

func (s *Server) withSession(h sessionHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		sess, err := s.sessions.Get(c.Params("sid"))
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "session not found"})
		}
		return h(c, sess)
	}
}

type openRequest struct {
	FlowID string `json:"flowId"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type dropRequest struct {
	NodeType string  `json:"nodeType"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type selectRequest struct {
	NodeID string `json:"nodeId"`
	EdgeID string `json:"edgeId"`
}

type editorView struct {
	NodeID   string           `json:"nodeId"`
	NodeType string           `json:"nodeType"`
	Variant  registry.Variant `json:"variant"`
	Title    string           `json:"title"`
	Draft    any              `json:"draft"`
}

type sessionSummary struct {
	ID     string `json:"id"`
	FlowID string `json:"flowId"`
	Name   string `json:"name"`
}

func (s *Server) sessionRoutes() {
	api := s.app.Group("/api/sessions")

	api.Post("/", func(c fiber.Ctx) error {
		var req openRequest
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&req); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		sess, err := s.sessions.Open(c.Context(), req.FlowID)
		if errors.Is(err, apiflow.ErrFlowNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "flow not found"})
		}
		if err != nil {
			return c.Status(502).JSON(fiber.Map{"error": "Error loading flow: " + err.Error()})
		}
		return c.Status(201).JSON(sess.View())
	})

	api.Get("/", func(c fiber.Ctx) error {
		out := []sessionSummary{}
		for _, sess := range s.sessions.List() {
			out = append(out, sessionSummary{ID: sess.ID(), FlowID: sess.FlowID(), Name: sess.Name()})
		}
		return c.JSON(out)
	})

	api.Get("/:sid", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		return c.JSON(sess.View())
	}))

	api.Delete("/:sid", func(c fiber.Ctx) error {
		if !s.sessions.Close(c.Params("sid")) {
			return c.Status(404).JSON(fiber.Map{"error": "session not found"})
		}
		return c.SendStatus(204)
	})

	api.Put("/:sid/name", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		var req nameRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		sess.SetName(req.Name)
		return c.JSON(fiber.Map{"name": sess.Name()})
	}))

	api.Put("/:sid/viewport", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		var vp graph.Viewport
		if err := c.Bind().JSON(&vp); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		sess.Controller().SetTransform(vp)
		return c.JSON(vp)
	}))

	// ── Gestures ──────────────────────────────────────────────────────
	api.Post("/:sid/drop", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		var req dropRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		n, ok := sess.Controller().OnDrop(req.NodeType, apiflow.Position{X: req.X, Y: req.Y})
		if !ok {
			return c.Status(422).JSON(fiber.Map{"error": "drop rejected"})
		}
		return c.Status(201).JSON(n)
	}))

	api.Post("/:sid/connect", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		var req graph.Connection
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		e, ok := sess.Controller().OnConnect(req)
		if !ok {
			return c.Status(422).JSON(fiber.Map{"error": "connection rejected"})
		}
		return c.Status(201).JSON(e)
	}))

	api.Post("/:sid/select", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		var req selectRequest
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&req); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		ctrl := sess.Controller()
		switch {
		case req.NodeID != "":
			if !ctrl.OnNodeClick(req.NodeID) {
				return c.Status(404).JSON(fiber.Map{"error": "node not found"})
			}
		case req.EdgeID != "":
			if !ctrl.OnEdgeClick(req.EdgeID) {
				return c.Status(404).JSON(fiber.Map{"error": "edge not found"})
			}
		default:
			ctrl.OnPaneClick()
		}
		return c.JSON(ctrl.Selection())
	}))

	api.Delete("/:sid/nodes/:nid", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		sess.Controller().RequestDelete(c.Params("nid"))
		return c.SendStatus(204)
	}))

	api.Delete("/:sid/edges/:eid", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		sess.Controller().OnDeleteEdge(c.Params("eid"))
		return c.SendStatus(204)
	}))

	// ── Node configuration ────────────────────────────────────────────
	api.Get("/:sid/nodes/:nid/editor", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		ed, ok := sess.Controller().OnNodeDoubleClick(c.Params("nid"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "node not found"})
		}
		defer ed.Close()
		draft, err := ed.Render()
		if err != nil {
			s.logger.Warn("editor draft not renderable", "node", ed.NodeID(), "error", err)
			draft = nil
		}
		return c.JSON(editorView{
			NodeID:   ed.NodeID(),
			NodeType: ed.NodeType(),
			Variant:  ed.Variant(),
			Title:    ed.Title(),
			Draft:    draft,
		})
	}))

	api.Put("/:sid/nodes/:nid/config", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		nid := c.Params("nid")
		ed, ok := sess.Controller().OnNodeDoubleClick(nid)
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "node not found"})
		}
		if err := ed.Load(c.Body()); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		err := ed.Save()
		if errors.Is(err, nodeconfig.ErrInvalidConfig) {
			return c.Status(422).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, apiflow.ErrNodeNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "node not found"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		n, _ := sess.Store().Node(nid)
		return c.JSON(n)
	}))

	// ── Document round-trips ──────────────────────────────────────────
	api.Get("/:sid/document", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+flowjson.FileName(sess.Flow())+`"`)
		return c.JSON(sess.Document())
	}))

	api.Post("/:sid/import", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		var doc flowjson.Document
		if err := c.Bind().JSON(&doc); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Error parsing JSON file: " + err.Error()})
		}
		sess.Import(doc)
		return c.JSON(sess.View())
	}))

	api.Post("/:sid/save", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		id, err := sess.Save(c.Context())
		if errors.Is(err, apiflow.ErrNameRequired) {
			return c.Status(422).JSON(fiber.Map{"success": false, "error": "Please enter a name for your flow"})
		}
		if errors.Is(err, session.ErrStale) {
			return c.Status(409).JSON(fiber.Map{"success": false, "error": err.Error()})
		}
		if err != nil {
			return c.Status(502).JSON(fiber.Map{"success": false, "error": "Error saving flow: " + err.Error()})
		}
		return c.JSON(fiber.Map{"success": true, "id": id})
	}))

	api.Post("/:sid/reload", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		err := sess.Reload(c.Context())
		if errors.Is(err, apiflow.ErrFlowNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "flow not found"})
		}
		if errors.Is(err, session.ErrStale) {
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(502).JSON(fiber.Map{"error": "Error loading flow: " + err.Error()})
		}
		return c.JSON(sess.View())
	}))

	api.Post("/:sid/validate", s.withSession(func(c fiber.Ctx, sess *session.Session) error {
		mode, err := client.ParseMode(c.Query("mode"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		res, err := sess.Validate(c.Context(), mode)
		if errors.Is(err, session.ErrNoValidator) {
			return c.Status(501).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, session.ErrStale) {
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(res)
	}))
}
