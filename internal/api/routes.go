package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.InstanceInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	recordings := s.router.Group("/recordings")
	{
		recordings.POST("", s.recordingHandler.StartRecording)
		recordings.POST("/stop", s.recordingHandler.StopRecording)
		recordings.GET("/status", s.recordingHandler.GetStatus)
	}

	sessions := s.router.Group("/sessions")
	{
		sessions.GET("", s.sessionHandler.ListSessions)
		sessions.GET("/:id", s.sessionHandler.GetSession)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
