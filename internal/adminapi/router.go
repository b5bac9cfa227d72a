package adminapi

// InitRouter registers every admin API route. Call after webserver.Init.
func InitRouter() {
	registerInstanceRoutes()
	registerGatewayRoutes()
	registerWebhookRoutes()
	registerEventRoutes()
	registerStatusRoutes()
}
