// Package handler exposes the query facade and the refresh trigger over
// HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"elainedb.dev/geotube/model"
	"elainedb.dev/geotube/repository"
)

type Server struct {
	repo     *repository.Repository
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

func New(repo *repository.Repository, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		repo:     repo,
		gatherer: gatherer,
		logger:   logger,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	api := router.Group("/api")
	api.GET("/videos", s.listVideos)
	api.GET("/videos/facets", s.facets)
	api.GET("/videos/state", s.state)
	api.POST("/videos/refresh", s.refresh)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	return router
}

func (s *Server) listVideos(c *gin.Context) {
	filter := model.FilterOptions{
		ChannelName: c.Query("channel"),
		Country:     c.Query("country"),
	}
	sort := model.ParseSortOption(c.Query("sort"))

	videos, err := s.repo.List(filter, sort)
	if err != nil {
		s.returnErr(c, http.StatusInternalServerError, "could not list videos", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
}

func (s *Server) facets(c *gin.Context) {
	channels, err := s.repo.DistinctChannels()
	if err != nil {
		s.returnErr(c, http.StatusInternalServerError, "could not list channels", err)
		return
	}
	countries, err := s.repo.DistinctCountries()
	if err != nil {
		s.returnErr(c, http.StatusInternalServerError, "could not list countries", err)
		return
	}
	total, err := s.repo.TotalCount()
	if err != nil {
		s.returnErr(c, http.StatusInternalServerError, "could not count videos", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channels":   channels,
		"countries":  countries,
		"totalCount": total,
	})
}

func (s *Server) state(c *gin.Context) {
	filter := model.FilterOptions{
		ChannelName: c.Query("channel"),
		Country:     c.Query("country"),
	}
	sort := model.ParseSortOption(c.Query("sort"))

	c.JSON(http.StatusOK, s.repo.State(filter, sort))
}

func (s *Server) refresh(c *gin.Context) {
	videos, err := s.repo.Refresh(c.Request.Context())
	if err != nil {
		s.returnErr(c, http.StatusBadGateway, "refresh failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
}

func (s *Server) returnErr(c *gin.Context, status int, message string, err error) {
	s.logger.Error(message, slog.String("error", err.Error()))
	c.JSON(status, gin.H{"message": message, "error": err.Error()})
}
