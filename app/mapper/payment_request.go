package mapper

import (
	"time"

	"github.com/civicstack/ms-go-payflow/app/entity"
	"github.com/civicstack/ms-go-payflow/app/types"
)

func PaymentRequestToResponse(item *entity.PaymentRequest) *types.PaymentRequestResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentRequestResponse{
		ID:              item.ID,
		SessionID:       item.SessionID,
		TeamSlug:        item.TeamSlug,
		FlowID:          item.FlowID,
		PayeeName:       item.PayeeName,
		PayeeEmail:      item.PayeeEmail,
		ApplicantName:   item.ApplicantName,
		SessionPreview:  item.SessionPreview,
		GovPayPaymentID: derefString(item.GovPayPaymentID),
		PaidAt:          formatTime(item.PaidAt),
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func SubmissionsToResponse(items map[string]*entity.ScheduledSubmission) types.SendEventsResponse {
	result := make(types.SendEventsResponse, len(items))
	for destination, item := range items {
		result[destination] = &types.ScheduledSubmissionResponse{
			Message: item.Message,
			EventID: item.EventID,
		}
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
