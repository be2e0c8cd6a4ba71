package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v1 "github.com/reputrack/creditledger/internal/api/v1"
)

const prefixV1 = "/api/v1"

func SetupRoutes(app *fiber.App, handler *v1.Handler) {
	app.Get("/ping", handler.Pong)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post(prefixV1+"/credits/grant", handler.Grant)
	app.Post(prefixV1+"/credits/consume", handler.Consume)
	app.Get(prefixV1+"/credits/balance/:userID", handler.GetBalance)
	app.Get(prefixV1+"/credits/history/:userID", handler.GetHistory)

	app.Get(prefixV1+"/reports/summary", handler.GetSummary)
	app.Get(prefixV1+"/reports/top-consumers", handler.GetTopConsumers)
}
