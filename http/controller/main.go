package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/lamvt/vaultstream/config"
	"github.com/lamvt/vaultstream/infra"
	"github.com/lamvt/vaultstream/repository"
	"github.com/lamvt/vaultstream/utils"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
}

func NewController(cfg *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	return &Controller{
		Config:     cfg,
		Infra:      infra,
		Repository: repo,
	}
}

func (ctrl *Controller) HealthCheck(c *gin.Context) {
	utils.JSON200(c, gin.H{"status": "ok"})
}
