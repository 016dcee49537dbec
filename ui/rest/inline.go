package rest

import (
	"github.com/gofiber/fiber/v2"
	domainInline "github.com/lumio-chat/inlinegw/domains/inline"
	pkgError "github.com/lumio-chat/inlinegw/pkg/error"
	"github.com/lumio-chat/inlinegw/pkg/utils"
	"github.com/lumio-chat/inlinegw/validations"
)

type Inline struct {
	Service domainInline.IInlineUsecase
}

func InitRestInline(app fiber.Router, service domainInline.IInlineUsecase) Inline {
	rest := Inline{Service: service}
	app.Post("/inline/query", rest.Query)
	app.Get("/inline/cache/stats", rest.CacheStats)
	app.Delete("/inline/cache", rest.ClearCache)

	return rest
}

type inlineQueryRequest struct {
	domainInline.QueryRequest
	AllowStale bool `json:"allow_stale"`
}

// Query runs one inline query. When the caller opted into stale results
// and an expired entry existed, the response carries both the provisional
// and the final value, in emission order.
func (handler *Inline) Query(c *fiber.Ctx) error {
	var request inlineQueryRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}
	utils.PanicIfNeeded(validations.ValidateInlineQuery(c.UserContext(), request.QueryRequest))

	var emitted []domainInline.QueryResult
	err := handler.Service.Query(
		c.UserContext(),
		request.QueryRequest,
		domainInline.QueryOptions{AllowStale: request.AllowStale},
		func(res domainInline.QueryResult) {
			emitted = append(emitted, res)
		},
	)
	utils.PanicIfNeeded(err)

	if len(emitted) == 0 {
		// Unknown bot or peer is a valid terminal outcome, not an error.
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "NO_RESULT",
			Message: "Bot or peer not found",
		})
	}

	final := emitted[len(emitted)-1]
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Inline query success",
		Results: map[string]any{
			"final":    final,
			"emitted":  emitted,
			"is_stale": final.IsStale,
		},
	})
}

func (handler *Inline) CacheStats(c *fiber.Ctx) error {
	stats, err := handler.Service.CacheStats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats",
		Results: stats,
	})
}

func (handler *Inline) ClearCache(c *fiber.Ctx) error {
	utils.PanicIfNeeded(handler.Service.ClearCache(c.UserContext()))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache cleared",
	})
}
