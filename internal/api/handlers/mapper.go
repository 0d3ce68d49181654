package handlers

import (
	"time"

	"gorm.io/datatypes"

	"github.com/ouredu/request-tracker/internal/api/dto"
	"github.com/ouredu/request-tracker/internal/domain/tracking"
)

func formatDate(d datatypes.Date) string {
	return time.Time(d).Format("2006-01-02")
}

// SummaryToResponse converts a summary model to its API representation
func SummaryToResponse(s *tracking.AccessSummary) dto.AccessSummaryResponse {
	return dto.AccessSummaryResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		RoleID:      s.RoleID,
		RoleName:    s.RoleName,
		Date:        formatDate(s.Date),
		AccessCount: s.AccessCount,
		FirstAccess: s.FirstAccess,
		LastAccess:  s.LastAccess,
		SessionID:   s.SessionID,
		IPAddress:   s.IPAddress,
		DeviceType:  s.DeviceType,
		Browser:     s.Browser,
		Platform:    s.Platform,
	}
}

// DetailToResponse converts a detail model to its API representation
func DetailToResponse(d *tracking.AccessDetail) dto.AccessDetailResponse {
	return dto.AccessDetailResponse{
		ID:         d.ID,
		UserID:     d.UserID,
		RoleID:     d.RoleID,
		Date:       formatDate(d.Date),
		Method:     d.Method,
		Endpoint:   d.Endpoint,
		Module:     d.Module,
		Submodule:  d.Submodule,
		Label:      d.Label,
		VisitCount: d.VisitCount,
		FirstVisit: d.FirstVisit,
		LastVisit:  d.LastVisit,
	}
}
