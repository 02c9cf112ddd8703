// Package httpapi exposes the forklore services over a gin REST API.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ersonp/forklore-core/internal/domain/services"
	"github.com/ersonp/forklore-core/internal/infrastructure/observability"
)

// Services are the domain services served by the API. Search and Assist
// may be nil when their providers are not configured.
type Services struct {
	Works      *services.WorkService
	Branches   *services.BranchService
	Promotion  *services.PromotionService
	Votes      *services.VoteService
	Visibility *services.VisibilityService
	Wiki       *services.WikiService
	Search     *services.SearchService
	Assist     *services.AssistService
}

// Options configures the router's ambient middleware. Zero values disable
// the corresponding feature.
type Options struct {
	// ServiceName enables otelgin tracing under this name.
	ServiceName string
	// Metrics records per-route request counts and latency.
	Metrics *observability.Metrics
	// Gatherer is exposed on /metrics.
	Gatherer prometheus.Gatherer
}

type api struct {
	svc Services
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Services, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(requestLogger())
	if opts.Metrics != nil {
		router.Use(requestMetrics(opts.Metrics))
	}
	router.Use(identity())

	router.GET("/health", healthCheck)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	a := &api{svc: svc}
	v1 := router.Group("/v1")
	{
		v1.POST("/works", requireUser(), a.createWork)
		v1.GET("/works/:id", a.getWork)
		v1.POST("/works/:id/progress", requireUser(), a.recordProgress)
		v1.GET("/works/:id/branches", a.listBranches)
		v1.PUT("/works/:id/branching", requireUser(), a.setAllowBranching)
		v1.GET("/works/:id/link-requests", a.listWorkLinkRequests)

		v1.POST("/spoiler-gate", a.spoilerGate)

		v1.POST("/branches", requireUser(), a.createBranch)
		branches := v1.Group("/branches/:id")
		{
			branches.GET("", a.getBranch)
			branches.PATCH("", requireUser(), a.updateBranch)
			branches.DELETE("", requireUser(), a.deleteBranch)
			branches.PUT("/visibility", requireUser(), a.setVisibility)
			branches.GET("/ancestry", a.ancestry)
			branches.POST("/chapters", requireUser(), a.publishChapter)

			branches.GET("/vote", requireUser(), a.voteStatus)
			branches.POST("/vote", requireUser(), a.castVote)
			branches.DELETE("/vote", requireUser(), a.withdrawVote)
			branches.POST("/vote/toggle", requireUser(), a.toggleVote)

			branches.POST("/merge", requireUser(), a.merge)
			branches.POST("/reject", requireUser(), a.reject)
			branches.GET("/link-requests", a.listBranchLinkRequests)
			branches.POST("/link-requests", requireUser(), a.requestLink)

			branches.GET("/wiki", a.listWiki)
			branches.POST("/wiki", requireUser(), a.createEntry)
			branches.GET("/wiki/search", a.searchWiki)
			branches.GET("/tags", a.listTags)
			branches.POST("/tags", requireUser(), a.createTag)
		}

		links := v1.Group("/link-requests/:id")
		{
			links.POST("/approve", requireUser(), a.approveLink)
			links.POST("/reject", requireUser(), a.rejectLink)
		}

		entries := v1.Group("/wiki-entries/:id")
		{
			entries.GET("", a.getEntry)
			entries.GET("/history", a.entryHistory)
			entries.POST("/snapshots", requireUser(), a.appendSnapshot)
			entries.POST("/draft", requireUser(), a.draftSnapshot)
			entries.PUT("/tags", requireUser(), a.setEntryTags)
		}
	}

	return router
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
