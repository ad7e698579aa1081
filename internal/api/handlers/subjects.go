package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/pkg/dto"
)

type SubjectLister interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
}

// SubjectHandler is read-only; enrollment happens through attendctl.
type SubjectHandler struct {
	subjects SubjectLister
}

func NewSubjectHandler(subjects SubjectLister) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

func (h *SubjectHandler) List(c *gin.Context) {
	subjects, err := h.subjects.ListSubjects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SubjectResponse, 0, len(subjects))
	for _, s := range subjects {
		resp = append(resp, dto.SubjectResponse{
			SubjectID:      s.SubjectID,
			DisplayName:    s.DisplayName,
			ReferenceCount: s.ReferenceCount,
			CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, dto.SubjectListResponse{Subjects: resp, Total: len(resp)})
}
