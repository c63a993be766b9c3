package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lamvt/vaultstream/http/controller/dto"
	"github.com/lamvt/vaultstream/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListObjects returns object summaries, newest first.
// GET /objects?limit=<n>
func (ctrl *Controller) ListObjects(c *gin.Context) {
	ctx := c.Request.Context()

	limit := defaultListLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			utils.JSON400(c, "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}

	objects, err := ctrl.Repository.Objects.ListObjects(ctx, limit)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Objects] Failed to list objects")
		utils.JSON500(c, "Failed to list objects")
		return
	}

	summaries := make([]dto.ObjectSummary, 0, len(objects))
	for _, obj := range objects {
		summaries = append(summaries, dto.ObjectSummary{
			ObjectID:   obj.ObjectID,
			FileName:   obj.FileName,
			FileType:   obj.FileType,
			FileSize:   obj.FileSize,
			UploadedAt: obj.UploadedAt,
		})
	}

	utils.JSON200(c, dto.ListObjectsResponse{Objects: summaries})
}
