package http

import (
	"github.com/gofiber/fiber/v2"

	"preference_server/core/port/in"
	"preference_server/pkg/response"
)

// TaxonomyHandler exposes the category directory and query analysis.
type TaxonomyHandler struct {
	taxonomy in.TaxonomyUseCase
}

func NewTaxonomyHandler(taxonomy in.TaxonomyUseCase) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy}
}

// Register registers the public taxonomy routes.
func (h *TaxonomyHandler) Register(router fiber.Router) {
	tax := router.Group("/taxonomy")
	tax.Get("/categories", h.ListCategories)
	tax.Get("/schemas", h.ListSchemas)
	tax.Get("/search", h.Search)
}

// RegisterAdmin registers the keyword administration routes. The caller
// supplies the authentication middleware.
func (h *TaxonomyHandler) RegisterAdmin(router fiber.Router, auth fiber.Handler) {
	admin := router.Group("/admin/taxonomy", auth)
	admin.Get("/keyword-mappings", h.KeywordMappings)
}

func (h *TaxonomyHandler) ListCategories(c *fiber.Ctx) error {
	categories := h.taxonomy.Categories()
	return response.OKWithMeta(c, categories, &response.Meta{Total: len(categories)})
}

func (h *TaxonomyHandler) ListSchemas(c *fiber.Ctx) error {
	return response.OK(c, h.taxonomy.Schemas())
}

type searchQuery struct {
	Query string `query:"query" json:"query" validate:"required,max=500"`
}

func (h *TaxonomyHandler) Search(c *fiber.Ctx) error {
	var q searchQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	analysis, err := h.taxonomy.Search(c.UserContext(), q.Query)
	if err != nil {
		return err
	}
	return response.OK(c, analysis)
}

func (h *TaxonomyHandler) KeywordMappings(c *fiber.Ctx) error {
	mappings := h.taxonomy.KeywordMappings()
	return response.OKWithMeta(c, mappings, &response.Meta{Total: len(mappings)})
}
