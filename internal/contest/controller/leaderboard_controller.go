package controller

import (
	"arbiter/internal/contest/service"
	"arbiter/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// LeaderboardController handles leaderboard HTTP endpoints.
type LeaderboardController struct {
	leaderboardService *service.LeaderboardService
}

// NewLeaderboardController creates a new LeaderboardController.
func NewLeaderboardController(leaderboardService *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{leaderboardService: leaderboardService}
}

// Get returns the standings for a contest.
func (h *LeaderboardController) Get(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	standings, err := h.leaderboardService.Standings(c.Request.Context(), contestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, standings)
}
