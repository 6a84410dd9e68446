package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/internal/services"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/gin-gonic/gin"
)

type ContributorHandler struct {
	contributors *repositories.ContributorRepository
	promotion    *services.PromotionService
	cfg          *config.Config
}

func NewContributorHandler(contributors *repositories.ContributorRepository, promotion *services.PromotionService, cfg *config.Config) *ContributorHandler {
	return &ContributorHandler{
		contributors: contributors,
		promotion:    promotion,
		cfg:          cfg,
	}
}

// ContributorSummary is one row of the contributor listing.
type ContributorSummary struct {
	Login             string      `json:"login"`
	Role              models.Role `json:"role"`
	Blocked           bool        `json:"blocked"`
	Assigned          bool        `json:"assigned"`
	TotalPRs          int         `json:"total_prs"`
	AvgLinesChanged   int         `json:"avg_lines_changed"`
	OpenAssignments   int         `json:"open_assignments"`
	ManualAssignments int         `json:"manual_assignments"`
}

func summarize(c *models.Contributor) ContributorSummary {
	return ContributorSummary{
		Login:             c.GitHub.Login,
		Role:              c.Status.CurrentRole,
		Blocked:           c.Status.Blocked,
		Assigned:          c.Status.Assigned,
		TotalPRs:          c.Stats.TotalPRs,
		AvgLinesChanged:   c.Stats.AvgLinesChanged,
		OpenAssignments:   len(c.Assignments),
		ManualAssignments: len(c.ManualAssignments),
	}
}

func summarizeAll(list []*models.Contributor) []ContributorSummary {
	out := make([]ContributorSummary, 0, len(list))
	for _, c := range list {
		out = append(out, summarize(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Login) < strings.ToLower(out[j].Login)
	})
	return out
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrCorrupt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(errorStatus(err), gin.H{"error": err.Error(), "outcome": models.Outcome(err)})
}

// ListContributors returns every readable record, optionally filtered by ?role=
func (h *ContributorHandler) ListContributors(c *gin.Context) {
	all, err := h.contributors.LoadAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if role := c.Query("role"); role != "" {
		filtered := all[:0]
		for _, contributor := range all {
			if strings.EqualFold(string(contributor.Status.CurrentRole), role) {
				filtered = append(filtered, contributor)
			}
		}
		all = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"count":        len(all),
		"contributors": summarizeAll(all),
	})
}

// GetContributor returns the full record for :login
func (h *ContributorHandler) GetContributor(c *gin.Context) {
	contributor, err := h.contributors.Load(c.Request.Context(), c.Param("login"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contributor)
}

// GetPromotion explains whether :login can be promoted
func (h *ContributorHandler) GetPromotion(c *gin.Context) {
	check, err := h.promotion.Check(c.Request.Context(), c.Param("login"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// AvailableSentinels lists Sentinels that can take another assignment.
// ?max_concurrent overrides the configured capacity.
func (h *ContributorHandler) AvailableSentinels(c *gin.Context) {
	maxConcurrent := h.cfg.Sentinel.MaxConcurrent
	if raw := c.Query("max_concurrent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_concurrent must be a positive integer"})
			return
		}
		maxConcurrent = n
	}

	all, err := h.contributors.LoadAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	eligible := services.EligibleSentinels(all, maxConcurrent)
	c.JSON(http.StatusOK, gin.H{
		"max_concurrent": maxConcurrent,
		"count":          len(eligible),
		"sentinels":      summarizeAll(eligible),
	})
}
