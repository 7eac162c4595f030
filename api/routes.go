package api

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	v1 := s.router.Group("/v1")
	{
		v1.POST("/tx", s.handleSubmitTx)
		v1.GET("/accounts/:address", s.handleGetAccount)

		if s.config.FaucetEnabled {
			faucet := v1.Group("/faucet")
			faucet.Use(FaucetAuthMiddleware(s.auth))
			faucet.POST("", s.handleFaucet)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", s.handleListJobs)
			jobs.GET("/count", s.handleJobCount)
			jobs.GET("/pending", s.handlePendingJobs)
			jobs.GET("/models", s.handleCompletedModels)
			jobs.GET("/:id", s.handleGetJob)
			jobs.GET("/:id/expired", s.handleJobExpired)
		}

		workers := v1.Group("/workers")
		{
			workers.GET("", s.handleListWorkers)
			workers.GET("/active", s.handleActiveWorkers)
			workers.GET("/count", s.handleWorkerCount)
			workers.GET("/:address", s.handleGetWorker)
			workers.GET("/:address/history", s.handleWorkerHistory)
			workers.GET("/:address/priority", s.handleWorkerPriority)
		}

		v1.GET("/stats", s.handleStats)
		v1.GET("/timeout/:type", s.handleTimeout)
		v1.GET("/owner", s.handleOwner)
		v1.GET("/params", s.handleParams)
	}
}
