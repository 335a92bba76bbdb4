package handler

import "github.com/gin-gonic/gin"

// Handlers groups everything the router mounts. Optional surfaces
// (settings admin, statements, events) stay nil when disabled.
type Handlers struct {
	Sessions    *SessionHandler
	Redemptions *RedemptionHandler
	Children    *ChildHandler
	Apps        *AppHandler
	Settings    *SettingsHandler
	Statements  *StatementHandler
	Events      *EventsHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API under the versioned prefix and the
// operational endpoints at the root.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)

	if h.Sessions != nil {
		api.POST("/sessions", h.Sessions.Record)
		api.GET("/sessions", h.Sessions.List)
		api.GET("/sessions/:id", h.Sessions.Get)
	}
	if h.Redemptions != nil {
		api.POST("/redemptions", h.Redemptions.Redeem)
		api.POST("/redemptions/validate", h.Redemptions.Validate)
		api.POST("/redemptions/quote", h.Redemptions.Quote)
		api.PUT("/redemptions/:id/usage", h.Redemptions.ReportUsage)
	}
	if h.Children != nil {
		api.POST("/children", h.Children.Create)
		api.GET("/children", h.Children.List)
		api.GET("/children/:id", h.Children.Get)
		api.GET("/children/:id/balance", h.Children.Balance)
		api.GET("/children/:id/summary", h.Children.Summary)
		api.GET("/children/:id/transactions", h.Children.Transactions)
		api.GET("/children/:id/redemptions", h.Children.Redemptions)
		api.POST("/children/:id/reconcile", h.Children.Reconcile)
	}
	if h.Apps != nil {
		api.POST("/apps", h.Apps.Register)
		api.GET("/apps", h.Apps.List)
		api.GET("/apps/:id", h.Apps.Get)
		api.PUT("/apps/:id", h.Apps.Update)
	}
	if h.Settings != nil {
		api.GET("/families/:id/settings", h.Settings.Get)
		api.PUT("/families/:id/settings", h.Settings.Update)
		api.POST("/families/:id/settings/pin", h.Settings.SetPin)
	}
	if h.Statements != nil {
		api.POST("/statements", h.Statements.Create)
		api.GET("/statements/status/:id", h.Statements.Status)
		api.GET("/statements/download/:token", h.Statements.Download)
	}
	if h.Events != nil {
		api.GET("/events/stream", h.Events.Subscribe)
	}
	if h.Metrics != nil {
		api.GET("/status", h.Metrics.Status)
	}
}
