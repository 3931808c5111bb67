package handler

import (
	"nietos/internal/applications/models"
)

// DeletedMessage acknowledges a successful delete.
const DeletedMessage = "application deleted"

type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ListResponse struct {
	Success      bool                  `json:"success"`
	Stats        models.Stats          `json:"stats"`
	Applications []*models.Application `json:"applications"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
